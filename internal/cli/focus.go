package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Файл фокуса хранит имя pipeline, подставляемое в команды,
// когда аргумент PIPELINE опущен. Это состояние клиента: сервер
// про фокус ничего не знает.

// focusPath возвращает путь к файлу фокуса.
// Переопределяется переменной окружения CONDUCTOR_FOCUS.
func focusPath() (string, error) {
	if p := os.Getenv("CONDUCTOR_FOCUS"); p != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".conductor", "focus"), nil
}

// Focus возвращает имя сфокусированного pipeline, если фокус установлен.
func Focus() (string, bool) {
	path, err := focusPath()
	if err != nil {
		return "", false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}

	name := strings.TrimSpace(string(data))
	return name, name != ""
}

// SetFocus сохраняет имя pipeline в файл фокуса.
func SetFocus(name string) error {
	path, err := focusPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create focus directory: %w", err)
	}
	return os.WriteFile(path, []byte(name+"\n"), 0o644)
}

// ClearFocus удаляет файл фокуса.
func ClearFocus() error {
	path, err := focusPath()
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// resolvePipeline возвращает имя pipeline из аргумента или из фокуса.
func resolvePipeline(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if name, ok := Focus(); ok {
		return name, nil
	}
	return "", fmt.Errorf("no pipeline specified and no focus set (run: conductor focus set NAME)")
}

// NewFocusCmd создаёт группу команд управления фокусом.
func NewFocusCmd(outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Manage the focused pipeline",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set NAME",
			Short: "Focus on a pipeline",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := SetFocus(args[0]); err != nil {
					return err
				}
				outputFn().Success(fmt.Sprintf("Focused on pipeline: %s", args[0]))
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the focused pipeline",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := ClearFocus(); err != nil {
					return err
				}
				outputFn().Success("Focus cleared")
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Show the focused pipeline",
			RunE: func(cmd *cobra.Command, args []string) error {
				out := outputFn()
				name, ok := Focus()
				if !ok {
					out.Success("No pipeline focused")
					return nil
				}
				out.Raw(name)
				return nil
			},
		},
	)

	return cmd
}
