package install

import (
	"io/fs"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ListFiles 逐项记录 root 下的文件，返回记录的条目数。
func ListFiles(root string, log *logrus.Entry) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		log.WithField("dir", d.IsDir()).Info(filepath.ToSlash(rel))
		count++
		return nil
	})
	return count, err
}
