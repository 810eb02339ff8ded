package main

import (
	"fmt"
	"os"

	"github.com/aretw0/trio/examples"
	"github.com/aretw0/trio/pkg/domain"
	"github.com/aretw0/trio/pkg/worker"
	"github.com/spf13/cobra"
)

// addTrioFlags registers the flags that select the programs to work on.
func addTrioFlags(cmd *cobra.Command) {
	cmd.Flags().String("example", "", "Use a bundled example instead of files")
	cmd.Flags().String("domain", "", "Path to the domain program")
	cmd.Flags().String("substance", "", "Path to the substance program")
	cmd.Flags().String("style", "", "Path to the style program")
	cmd.Flags().String("variation", "", "Layout seed (default \""+domain.DefaultVariation+"\")")
}

// loadTrio resolves the programs from --example, a directory argument or
// the individual file flags, in that order. Individual file flags override
// the matching file of an example or directory.
func loadTrio(cmd *cobra.Command, args []string) (domain.Trio, error) {
	var (
		t   domain.Trio
		err error
	)
	example, _ := cmd.Flags().GetString("example")
	switch {
	case example != "":
		if t, err = examples.Load(example); err != nil {
			return domain.Trio{}, fmt.Errorf("%w (available: %v)", err, examples.Names())
		}
	case len(args) > 0:
		if t, err = worker.ReadDir(args[0]); err != nil {
			return domain.Trio{}, err
		}
	}

	for flag, dst := range map[string]*string{
		"domain":    &t.Domain,
		"substance": &t.Substance,
		"style":     &t.Style,
	} {
		path, _ := cmd.Flags().GetString(flag)
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Trio{}, fmt.Errorf("failed to read %s program: %w", flag, err)
		}
		*dst = string(data)
	}

	if v, _ := cmd.Flags().GetString("variation"); v != "" {
		t.Variation = v
	}
	if t.Variation == "" {
		t.Variation = domain.DefaultVariation
	}
	return t, nil
}
