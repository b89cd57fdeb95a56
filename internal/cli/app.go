package cli

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/naveego/setup-bosun/internal/config"
	"github.com/naveego/setup-bosun/internal/env"
	"github.com/naveego/setup-bosun/internal/install"
	"github.com/naveego/setup-bosun/internal/platform"
	"github.com/naveego/setup-bosun/internal/remote"
	"github.com/naveego/setup-bosun/internal/toolcache"
	"github.com/naveego/setup-bosun/pkg/models"
)

// InstallService 描述安装能力。
type InstallService interface {
	Install(ctx context.Context, rel models.Release) (string, error)
}

// ListService 描述缓存查询能力。
type ListService interface {
	List() ([]models.CacheEntry, error)
}

// RemoveService 描述缓存删除能力。
type RemoveService interface {
	Remove(tag string) error
}

// VariableExporter 描述向 CI 系统导出变量的能力。
type VariableExporter interface {
	ExportVariable(name, value string) error
}

// Services 聚合命令执行所需的各项能力。
type Services struct {
	Resolver  remote.TagResolver
	Installer InstallService
	Lister    ListService
	Remover   RemoveService
	Exporter  VariableExporter
}

// ServiceFactory 根据配置构造 Services。
type ServiceFactory func(cfg models.Config, log *logrus.Entry, out io.Writer) (*Services, error)

// App 保存一次命令执行的配置、日志与服务。
type App struct {
	factory  ServiceFactory
	loader   *config.Loader
	cfgPath  string
	verbose  bool
	cfg      models.Config
	log      *logrus.Entry
	services *Services
}

// DefaultServices 构造真实的网络、缓存与导出实现。
func DefaultServices(cfg models.Config, log *logrus.Entry, out io.Writer) (*Services, error) {
	if err := platform.NewChecker(cfg).Validate(); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	cache := toolcache.NewFileCache(cfg.CacheDir, platform.ArtifactArch(cfg.Platform.Arch))
	exporter := env.NewExporter(out)

	downloader := install.NewDownloader(
		cfg.TempDir,
		install.WithHTTPClient(httpClient),
		install.WithProgressFunc(progressLogger(log)),
	)

	return &Services{
		Resolver: remote.NewResolver(
			platform.LatestURL(cfg.Repository),
			remote.WithHTTPClient(httpClient),
			remote.WithLogger(log),
		),
		Installer: install.NewInstaller(
			cache,
			downloader,
			exporter,
			install.WithTempDir(cfg.TempDir),
			install.WithLogger(log),
		),
		Lister:   install.NewLister(cache, cfg.Tool),
		Remover:  install.NewRemover(cache, cfg.Tool),
		Exporter: exporter,
	}, nil
}

func newApp(factory ServiceFactory) *App {
	if factory == nil {
		factory = DefaultServices
	}
	return &App{factory: factory, loader: config.NewLoader()}
}

// setup 在任一子命令执行前初始化日志、配置与服务。
func (a *App) setup(cmd *cobra.Command) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if a.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	a.log = logrus.NewEntry(logger).WithField("run", uuid.NewString())

	cfg, err := a.loader.Load(a.cfgPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = a.log.WithField("tool", cfg.Tool)
	a.log.WithFields(logrus.Fields{
		"version":  cfg.Version,
		"os":       cfg.Platform.OS,
		"arch":     cfg.Platform.Arch,
		"cacheDir": cfg.CacheDir,
		"tempDir":  cfg.TempDir,
	}).Debug("Loaded configuration")

	services, err := a.factory(cfg, a.log, cmd.OutOrStdout())
	if err != nil {
		return errors.Wrap(err, "initialize services")
	}
	a.services = services
	return nil
}

func progressLogger(log *logrus.Entry) install.ProgressFunc {
	lastBucket := int64(-1)
	return func(done, total int64) {
		if total <= 0 {
			return
		}
		percent := done * 100 / total
		if bucket := percent / 10; bucket != lastBucket {
			lastBucket = bucket
			log.WithFields(logrus.Fields{"bytes": done, "total": total}).Debugf("Download %d%%", percent)
		}
	}
}
