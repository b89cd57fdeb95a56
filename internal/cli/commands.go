package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naveego/setup-bosun/internal/config"
	"github.com/naveego/setup-bosun/internal/install"
	"github.com/naveego/setup-bosun/internal/platform"
)

const (
	flagConfig  = "config"
	flagVerbose = "verbose"
)

// NewRootCmd 创建 setup-bosun 命令树。不带子命令运行时执行安装。
func NewRootCmd(version string, factory ServiceFactory) *cobra.Command {
	app := newApp(factory)

	root := &cobra.Command{
		Use:   "setup-bosun",
		Short: "Install the latest bosun release and add it to the PATH.",
		Long: `setup-bosun resolves the latest bosun release, downloads the archive for
this platform into the tool cache and exposes it on the PATH of the
current CI job. Outside GitHub Actions the PATH and BOSUN_CONFIG exports
are printed as shell statements, so the output can be eval'd.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		RunE: app.runInstall,
	}
	root.SetVersionTemplate(fmt.Sprintf("setup-bosun version %s\n", version))

	pf := root.PersistentFlags()
	pf.StringVar(&app.cfgPath, flagConfig, "", "YAML file with setup-bosun settings.")
	pf.BoolVarP(&app.verbose, flagVerbose, "v", false, "Enable verbose logging.")
	config.RegisterFlags(pf)

	root.AddCommand(
		&cobra.Command{
			Use:   "install",
			Short: "Install bosun into the tool cache and add it to the PATH (default).",
			Args:  cobra.NoArgs,
			RunE:  app.runInstall,
		},
		&cobra.Command{
			Use:   "resolve",
			Short: "Print the tag of the latest bosun release.",
			Args:  cobra.NoArgs,
			RunE:  app.runResolve,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List cached bosun versions.",
			Args:  cobra.NoArgs,
			RunE:  app.runList,
		},
		&cobra.Command{
			Use:   "remove <version>",
			Short: "Remove a cached bosun version.",
			Args:  cobra.ExactArgs(1),
			RunE:  app.runRemove,
		},
	)

	return root
}

func (a *App) resolveTag(cmd *cobra.Command) (string, error) {
	if a.cfg.Pinned() {
		return a.cfg.Version, nil
	}
	if a.services.Resolver == nil {
		return "", errors.New("release resolution is unavailable")
	}
	return a.services.Resolver.LatestTag(cmd.Context())
}

func (a *App) runInstall(cmd *cobra.Command, args []string) error {
	if a.services.Installer == nil || a.services.Exporter == nil {
		return errors.New("install command is unavailable")
	}

	tag, err := a.resolveTag(cmd)
	if err != nil {
		return err
	}
	log := a.log.WithField("tag", tag)
	log.Info("Resolved release")

	rel, err := platform.ResolveRelease(a.cfg, tag)
	if err != nil {
		return err
	}

	toolPath, err := a.services.Installer.Install(cmd.Context(), rel)
	if err != nil {
		return err
	}
	log.WithField("path", toolPath).Infof("Installed %s", a.cfg.Tool)

	if a.cfg.ListFiles {
		if _, err := install.ListFiles(toolPath, log.WithField("diagnostic", "list-files")); err != nil {
			log.WithError(err).Warn("Could not list installed files")
		}
	}

	if err := a.services.Exporter.ExportVariable(a.cfg.ConfigVariable, a.cfg.ConfigFile); err != nil {
		return errors.Wrapf(err, "export %s", a.cfg.ConfigVariable)
	}
	log.WithFields(logrus.Fields{"name": a.cfg.ConfigVariable, "value": a.cfg.ConfigFile}).Debug("Exported variable")
	return nil
}

func (a *App) runResolve(cmd *cobra.Command, args []string) error {
	tag, err := a.resolveTag(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tag)
	return nil
}

func (a *App) runList(cmd *cobra.Command, args []string) error {
	if a.services.Lister == nil {
		return errors.New("list command is unavailable")
	}
	entries, err := a.services.Lister.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No cached %s versions.\n", a.cfg.Tool)
		return nil
	}
	fmt.Fprintln(out, "Cached versions:")
	for _, e := range entries {
		fmt.Fprintf(out, "  %s\n", install.FormatEntry(e))
	}
	return nil
}

func (a *App) runRemove(cmd *cobra.Command, args []string) error {
	if a.services.Remover == nil {
		return errors.New("remove command is unavailable")
	}
	if err := a.services.Remover.Remove(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %s\n", a.cfg.Tool, args[0])
	return nil
}
