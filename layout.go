package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/thiremani/nitro/decl"
	"github.com/thiremani/nitro/types"
)

var layoutCmd = &cobra.Command{
	Use:   "layout FILE",
	Short: "Print the native size, alignment and field offsets of declared types",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayout,
}

type layoutRow struct {
	name   string
	typ    string
	size   int64
	align  int64
	offset int64 // -1 for top-level types
}

func runLayout(cmd *cobra.Command, args []string) error {
	f, err := decl.Load(args[0])
	if err != nil {
		return err
	}
	set, err := decl.Resolve(f)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	var rows []layoutRow
	for _, name := range set.Names() {
		t, _ := set.Lookup(name)
		r, err := layoutOf(name, t, -1)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		rows = append(rows, r)

		s, ok := t.(*types.Structure)
		if !ok {
			continue
		}
		for _, field := range s.Fields() {
			off, err := types.Offsetof(s, field.Name)
			if err != nil {
				return err
			}
			fr, err := layoutOf("  ."+field.Name, field.Type, off)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", name, field.Name, err)
			}
			rows = append(rows, fr)
		}
	}
	writeLayout(cmd.OutOrStdout(), rows)
	return nil
}

func layoutOf(name string, t types.Type, offset int64) (layoutRow, error) {
	size, err := types.Sizeof(t)
	if err != nil {
		return layoutRow{}, err
	}
	align, err := types.Alignof(t)
	if err != nil {
		return layoutRow{}, err
	}
	return layoutRow{name: name, typ: t.String(), size: size, align: align, offset: offset}, nil
}

func pad(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

func writeLayout(w io.Writer, rows []layoutRow) {
	nameW, typW := len("NAME"), len("TYPE")
	for _, r := range rows {
		nameW = max(nameW, runewidth.StringWidth(r.name))
		typW = max(typW, runewidth.StringWidth(r.typ))
	}

	header := color.New(color.Bold)
	header.Fprintf(w, "%s  %s  %6s  %5s  %6s\n", pad("NAME", nameW), pad("TYPE", typW), "SIZE", "ALIGN", "OFFSET")
	for _, r := range rows {
		offset := "-"
		if r.offset >= 0 {
			offset = fmt.Sprint(r.offset)
		}
		fmt.Fprintf(w, "%s  %s  %6d  %5d  %6s\n", pad(r.name, nameW), pad(r.typ, typW), r.size, r.align, offset)
	}
}
