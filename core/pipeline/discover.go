package pipeline

import (
	"os"
	"path/filepath"
	"sort"

	"voicecleaner/core/preset"
	"voicecleaner/model"
)

// DiscoveredFile is one regular file found in the input directory.
type DiscoveredFile struct {
	Name  string
	Path  string
	Media bool // Extension is on the media allowlist
}

// Handle returns the media handle of the file.
func (f DiscoveredFile) Handle() model.MediaHandle {
	return model.NewMediaHandle(f.Path)
}

// Discover lists regular files directly inside dir, sorted by name.
// Subdirectories are not descended into.
func Discover(dir string) ([]DiscoveredFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Dir: dir, Err: os.ErrInvalid}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &DiscoveryError{Dir: dir, Err: err}
	}

	var files []DiscoveredFile
	for _, e := range entries {
		if !e.Type().IsRegular() {
			if e.Type()&os.ModeSymlink == 0 {
				continue
			}
			// 符号链接只接受指向普通文件的
			target, err := os.Stat(filepath.Join(dir, e.Name()))
			if err != nil || !target.Mode().IsRegular() {
				continue
			}
		}
		files = append(files, DiscoveredFile{
			Name:  e.Name(),
			Path:  filepath.Join(dir, e.Name()),
			Media: IsMediaFile(e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// IsMediaFile reports whether name has an allowlisted media extension.
func IsMediaFile(name string) bool {
	return preset.IsMediaFormat(model.FormatOf(name))
}
