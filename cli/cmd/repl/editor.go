package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/goccy/go-yaml"
)

const defaultEditor = "vi"

// editData implements [tea.ExecCommand]. It writes the data as YAML to a
// temporary file, opens $EDITOR on it and decodes the result, offering to
// edit again when the YAML is invalid.
type editData struct {
	ctx    context.Context
	data   map[string]any
	result map[string]any // nil when the edit was cancelled
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *editData) SetStdin(r io.Reader)  { c.stdin = r }
func (c *editData) SetStdout(w io.Writer) { c.stdout = w }
func (c *editData) SetStderr(w io.Writer) { c.stderr = w }

func (c *editData) Run() error {
	text, err := yaml.MarshalWithOptions(c.data, yaml.IndentSequence(true))
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "cairn-data-*.yaml")
	if err != nil {
		return err
	}

	path := f.Name()
	f.Close()

	defer os.Remove(path)

	for {
		if err := os.WriteFile(path, text, 0o600); err != nil {
			return err
		}

		if err := c.editor(path); err != nil {
			return err
		}

		if text, err = os.ReadFile(path); err != nil {
			return err
		}

		if strings.TrimSpace(string(text)) == "" {
			return nil
		}

		var data map[string]any

		err := yaml.Unmarshal(text, &data)
		if err == nil {
			if data == nil {
				data = map[string]any{}
			}

			c.result = data

			return nil
		}

		fmt.Fprintf(c.stderr, "\n%s\n", yaml.FormatError(err, false, true))
		fmt.Fprint(c.stdout, "Edit again? [Y/n] ")

		sc := bufio.NewScanner(c.stdin)
		if !sc.Scan() {
			return ErrEditDeclined
		}

		if answer := strings.ToLower(strings.TrimSpace(sc.Text())); answer == "n" || answer == "no" {
			return ErrEditDeclined
		}
	}
}

func (c *editData) editor(path string) error {
	args := strings.Fields(os.Getenv("EDITOR"))
	if len(args) == 0 {
		args = []string{defaultEditor}
	}

	cmd := exec.CommandContext(c.ctx, args[0], append(args[1:], path)...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = c.stdin, c.stdout, c.stderr

	return cmd.Run()
}
