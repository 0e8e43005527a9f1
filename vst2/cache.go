package vst2

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dudk/sequencer/log"
	"github.com/dudk/sequencer/plugin"
)

// Prefix is the path scheme of plugins resolved by library name.
const Prefix = "vst:"

// Cache represents list of vst2 libraries found in scan paths.
type Cache struct {
	log.Logger
	Paths []string
	Libs  Libraries
}

// Libraries represent vst2 library files grouped by their directory.
type Libraries map[string][]string

var (
	defaultScanPaths = getDefaultScanPaths()
	// Ext is vst2 library extension for current platform.
	Ext = getExt()
)

// NewCache scans default and provided paths for vst2 libraries.
func NewCache(logger log.Logger, paths ...string) *Cache {
	cache := Cache{Logger: logger}
	cache.Paths = uniquePaths(append(defaultScanPaths, paths...))
	cache.Scan()
	return &cache
}

// Scan walks scan paths and collects library files.
func (c *Cache) Scan() {
	c.Libs = make(map[string][]string)
	for _, path := range c.Paths {
		c.Libs[path] = make([]string, 0)
		err := filepath.Walk(expandHome(path), c.collect(path))
		if err != nil {
			c.Warn(err)
		}
	}
}

// Find returns path of library with provided name.
func (c *Cache) Find(name string) (string, error) {
	for _, libs := range c.Libs {
		for _, lib := range libs {
			if libraryName(lib) == name {
				return lib, nil
			}
		}
	}
	return "", fmt.Errorf("plugin %v not found at %v", name, c.Paths)
}

// Loader returns loader of "vst:<name>" paths. Library is looked up in
// the cache by name.
func (c *Cache) Loader(numChannels int) plugin.LoaderFunc {
	return func(path string) (plugin.Plugin, error) {
		lib, err := c.Find(strings.TrimPrefix(path, Prefix))
		if err != nil {
			return nil, err
		}
		return Open(lib, numChannels)
	}
}

func (c *Cache) collect(root string) filepath.WalkFunc {
	return func(path string, file os.FileInfo, err error) error {
		if err != nil {
			c.Debug(err)
			return nil
		}
		if strings.HasSuffix(file.Name(), Ext) {
			c.Libs[root] = append(c.Libs[root], path)
			// macOS bundles are directories
			if file.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	}
}

func getDefaultScanPaths() (paths []string) {
	switch goos := runtime.GOOS; goos {
	case "darwin":
		paths = []string{
			"~/Library/Audio/Plug-Ins/VST",
			"/Library/Audio/Plug-Ins/VST",
		}
	case "windows":
		paths = []string{
			"C:\\Program Files (x86)\\Steinberg\\VSTPlugins",
			"C:\\Program Files\\Steinberg\\VSTPlugins",
		}
	default:
		paths = []string{
			"~/.vst",
			"/usr/lib/vst",
			"/usr/local/lib/vst",
		}
	}
	if envVstPath := os.Getenv("VST_PATH"); len(envVstPath) > 0 {
		paths = append(paths, filepath.SplitList(envVstPath)...)
	}
	return
}

func getExt() string {
	switch os := runtime.GOOS; os {
	case "darwin":
		return ".vst"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func libraryName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

func uniquePaths(stringSlice []string) []string {
	u := make([]string, 0, len(stringSlice))
	m := make(map[string]bool)
	for _, val := range stringSlice {
		if _, ok := m[val]; !ok {
			m[val] = true
			u = append(u, val)
		}
	}
	return u
}

func (c Cache) String() string {
	var buf bytes.Buffer
	buf.WriteString("Scan paths:\n")
	for _, path := range c.Paths {
		buf.WriteString(fmt.Sprintf("\t%v\n", path))
	}
	buf.WriteString("Available plugins:\n")
	buf.WriteString(c.Libs.String())
	return buf.String()
}

func (libraries Libraries) String() string {
	var buf bytes.Buffer
	paths := make([]string, 0, len(libraries))
	for path := range libraries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		libs := libraries[path]
		buf.WriteString(fmt.Sprintf("\t%v\n", path))
		if len(libs) == 0 {
			buf.WriteString("\t\t[No plugins found]\n")
		}
		for _, lib := range libs {
			buf.WriteString(fmt.Sprintf("\t\t%v\n", libraryName(lib)))
		}
	}
	return buf.String()
}
