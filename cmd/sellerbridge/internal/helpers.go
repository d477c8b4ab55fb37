package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/lipgloss"

	"github.com/sellerbridge/sellerbridge/pkg/config"
)

const Logo = "🛍️"

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

// ConfigPath is bound to the persistent --config flag.
var ConfigPath string

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sellerbridge", "config.yaml")
}

// LoadConfig reads the file named by --config plus environment overrides.
func LoadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}
	return config.LoadConfig(config.ExpandHome(path))
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	return buildTime, runtime.Version()
}

// Field renders one "label: value" line.
func Field(label string, value any) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(fmt.Sprint(value))
}
