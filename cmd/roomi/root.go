package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roomi-app/roomi-backend/config"
	"github.com/roomi-app/roomi-backend/internal/bootstrap"
	"github.com/roomi-app/roomi-backend/internal/projects/domain"
	"github.com/roomi-app/roomi-backend/internal/projects/service"
	"github.com/roomi-app/roomi-backend/internal/render"
	"github.com/roomi-app/roomi-backend/internal/visualizer"
)

// App carries flags shared by subcommands.
type App struct {
	out   string
	name  string
	owner string
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "roomi",
		Short:        "Render floor plans and manage Roomi projects",
		SilenceUsage: true,
	}
	cmd.AddCommand(newRenderCmd(app), newProjectsCmd(app))
	return cmd
}

func newRenderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <image-file>",
		Short: "Generate a 3D render for a floor plan image and write it to disk",
		Args:  cobra.ExactArgs(1),
		RunE:  app.handleRender,
	}
	cmd.Flags().StringVarP(&app.out, "out", "o", "", "output file (default: derived from --name)")
	cmd.Flags().StringVar(&app.name, "name", "", "project name used for the output file")
	return cmd
}

func newProjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Inspect projects in the configured store",
	}
	cmd.PersistentFlags().StringVar(&app.owner, "owner", "", "owner user id")
	_ = cmd.MarkPersistentFlagRequired("owner")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List an owner's projects, newest first",
			Args:  cobra.NoArgs,
			RunE:  app.handleList,
		},
		&cobra.Command{
			Use:   "delete <project-id>",
			Short: "Delete one of the owner's projects",
			Args:  cobra.ExactArgs(1),
			RunE:  app.handleDelete,
		},
	)
	return cmd
}

func (a *App) handleRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	source, err := render.DetectDataURL(data)
	if err != nil {
		return err
	}

	started := time.Now()
	res, err := bootstrap.NewRenderClient(cfg.Render).Generate(cmd.Context(), source)
	if err != nil {
		return err
	}
	if res.RenderedImage == "" {
		return fmt.Errorf("render service returned no image")
	}

	name := a.name
	if name == "" {
		base := filepath.Base(args[0])
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	art, err := visualizer.ExportRender(name, res.RenderedImage)
	if err != nil {
		return err
	}

	out := a.out
	if out == "" {
		out = art.Filename
	}
	if err := os.WriteFile(out, art.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s, %d bytes) in %s\n", out, art.MimeType, len(art.Data), time.Since(started).Round(time.Millisecond))
	return nil
}

func (a *App) projectService(cmd *cobra.Command) (*service.ProjectService, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	stores, err := bootstrap.OpenStores(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.NewProjectService(stores.Projects), stores.Close, nil
}

func (a *App) handleList(cmd *cobra.Command, _ []string) error {
	svc, closeFn, err := a.projectService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	items, err := svc.List(cmd.Context(), a.owner)
	if err != nil {
		return err
	}
	return writeProjects(cmd.OutOrStdout(), items)
}

func (a *App) handleDelete(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := a.projectService(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	listing, err := svc.Listing(cmd.Context(), a.owner)
	if err != nil {
		return err
	}
	if err := listing.Remove(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return writeProjects(cmd.OutOrStdout(), listing.Items())
}

func writeProjects(out io.Writer, items []domain.Project) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tRENDERED\tPUBLIC")
	for _, p := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\n", p.ID, p.Name, time.UnixMilli(p.Timestamp).Format(time.DateTime), p.HasRender(), p.IsPublic)
	}
	return w.Flush()
}
