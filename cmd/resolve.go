// Copyright 2026 The ESP Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pkl-community/esp-core/pkg/pkgid"
	"github.com/pkl-community/esp-core/pkg/resolver"
)

var (
	resolveHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#6495ED"))
	resolveLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90"))
)

func newResolveCommand() *cobra.Command {
	var cacheDir string
	var download bool

	c := &cobra.Command{
		Use:   "resolve [package-uri]",
		Short: "Resolve a package URI through the disk-cached resolver",
		Long: `resolve fetches (or reuses a cached copy of) a package's metadata
and prints it. Pass --download to also fetch and verify the zip archive and
list the assets at the package root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			raw, err := packageURIArg(args)
			if err != nil {
				return err
			}
			pkg, err := pkgid.ParsePackageURI(raw)
			if err != nil {
				return fmt.Errorf("espctl resolve: %w", err)
			}

			if cacheDir == "" {
				cacheDir, err = resolver.DefaultCacheDir()
				if err != nil {
					return fmt.Errorf("espctl resolve: %w", err)
				}
			}

			r := resolver.NewDiskResolver(afero.NewOsFs(), cacheDir)
			defer r.Close()

			ctx := context.Background()
			meta, err := r.GetDependencyMetadata(ctx, pkg)
			if err != nil {
				return fmt.Errorf("espctl resolve: %w", err)
			}
			printMetadata(c, meta)

			if download {
				if err := r.DownloadPackage(ctx, pkg, false); err != nil {
					return fmt.Errorf("espctl resolve: %w", err)
				}
				asset, err := pkgid.ParsePackageAssetURI(pkg.String() + "#/")
				if err != nil {
					return err
				}
				elems, err := r.ListElements(ctx, asset)
				if err != nil {
					return fmt.Errorf("espctl resolve: %w", err)
				}
				fmt.Fprintln(c.OutOrStdout(), resolveHeading.Render("root assets"))
				for _, e := range elems {
					kind := "file"
					if e.IsDirectory {
						kind = "dir"
					}
					fmt.Fprintf(c.OutOrStdout(), "  %-6s %s\n", kind, e.Name)
				}
			}
			return nil
		},
	}
	c.Flags().StringVar(&cacheDir, "cache-dir", "", "package cache directory (defaults to the XDG cache dir)")
	c.Flags().BoolVar(&download, "download", false, "also download and verify the package zip, then list its root")
	return c
}

// packageURIArg returns args[0] if given, otherwise prompts interactively
// with huh so resolve can be used without remembering the exact grammar.
func packageURIArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	var uri string
	form := huh.NewInput().
		Title("Package URI").
		Description("package://authority/path@version[::sha256:checksum]").
		Value(&uri)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("espctl resolve: %w", err)
	}
	return uri, nil
}

func printMetadata(c *cobra.Command, meta pkgid.DependencyMetadata) {
	out := c.OutOrStdout()
	fmt.Fprintln(out, resolveHeading.Render(meta.Name+" "+meta.Version))
	fmt.Fprintf(out, "  %s %s\n", resolveLabel.Render("package uri:"), meta.PackageURI)
	fmt.Fprintf(out, "  %s %s\n", resolveLabel.Render("zip url:"), meta.PackageZipURL)
	fmt.Fprintf(out, "  %s %s\n", resolveLabel.Render("sha256:"), meta.PackageZipChecksums.SHA256)
	if meta.Description != nil {
		fmt.Fprintf(out, "  %s %s\n", resolveLabel.Render("description:"), *meta.Description)
	}
	names := meta.SortedDependencyNames()
	fmt.Fprintf(out, "  %s %s\n", resolveLabel.Render("dependencies:"), humanize.Comma(int64(len(names))))
	for _, name := range names {
		fmt.Fprintf(out, "    - %s -> %s\n", name, meta.Dependencies[name].URI)
	}
}
