package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/app"
	"chizu/campus-client/internal/config"
	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/routing"
	"chizu/campus-client/internal/search"
	"chizu/campus-client/internal/shell"
)

const commandTimeout = 30 * time.Second

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the map client with its local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			application := app.New(cfg, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				logger.Error("application terminated", "error", err)
				return err
			}

			logger.Info("application stopped cleanly")
			return nil
		},
	}
}

func searchCmd(g *globals) *cobra.Command {
	var college, category bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search locations by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			locs, err := newClient(cfg, logger).Locations(ctx)
			if err != nil {
				return fmt.Errorf("load locations: %w", err)
			}

			opts := search.Options{
				MatchCollege:  cfg.Search.MatchCollege,
				MatchCategory: cfg.Search.MatchCategory,
			}
			if cmd.Flags().Changed("college") {
				opts.MatchCollege = college
			}
			if cmd.Flags().Changed("category") {
				opts.MatchCategory = category
			}

			groups := search.Match(locs, strings.Join(args, " "), opts)
			return printGroups(cmd.OutOrStdout(), groups)
		},
	}

	cmd.Flags().BoolVar(&college, "college", false, "Also match the college name")
	cmd.Flags().BoolVar(&category, "category", false, "Also match the category")
	return cmd
}

func printGroups(w io.Writer, groups search.Groups) error {
	if groups.Total() == 0 {
		_, err := fmt.Fprintln(w, "No locations found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	sections := []struct {
		category model.Category
		locs     []model.Location
	}{
		{model.CategoryDining, groups.Dining},
		{model.CategoryAcademic, groups.Academic},
		{model.CategoryRecreation, groups.Recreation},
		{model.CategoryOther, groups.Other},
	}
	for _, s := range sections {
		for _, loc := range s.locs {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", loc.ID, s.category, loc.Name, loc.College)
		}
	}
	return tw.Flush()
}

func routeCmd(g *globals) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "route <location-id>",
		Short: "Walking route from a position to a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid location id %q: %w", args[0], err)
			}

			if from == "" {
				from = cfg.DefaultPosition
			}
			if from == "" {
				return errors.New("--from is required when no default_position is configured")
			}
			origin, err := mapview.ParseLatLng(from)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			locs, err := newClient(cfg, logger).Locations(ctx)
			if err != nil {
				return fmt.Errorf("load locations: %w", err)
			}

			var dest model.Location
			var found bool
			for _, loc := range locs {
				if loc.ID == id {
					dest, found = loc, true
					break
				}
			}
			if !found {
				return fmt.Errorf("location %d: %w", id, shell.ErrUnknownLocation)
			}
			to, ok := dest.Coordinates()
			if !ok {
				return fmt.Errorf("location %q has no coordinates", dest.Name)
			}

			route, err := newRouter(cfg, logger).Route(ctx, origin, to)
			if err != nil {
				return fmt.Errorf("route to %q: %w", dest.Name, err)
			}

			info := routing.NewRouteInfo(route.Summary, dest.Name)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Directions to %s\n", info.DestinationName)
			fmt.Fprintf(out, "  Distance: %.2f mi (%.2f km)\n", info.DistanceMiles, info.DistanceKm)
			fmt.Fprintf(out, "  Walk:     %d min\n", info.WalkMinutes)
			fmt.Fprintf(out, "  Bike:     %d min\n", info.BikeMinutes)
			fmt.Fprintf(out, "  Scooter:  %d min\n", info.ScooterMinutes)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Starting position as lat,lng (defaults to default_position)")
	return cmd
}

func calendarCmd(g *globals) *cobra.Command {
	var (
		userID int64
		name   string
		output string
	)

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Export a user's starred events as iCalendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if userID <= 0 {
				return errors.New("--user-id is required")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			handle := mapview.NewHandle(mapview.CanvasFactory, mapview.CampusView())
			sh := shell.New(newClient(cfg, logger), handle, routing.Straight{}, shell.WithLogger(logger))
			if err := sh.Refresh(ctx); err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			sh.SetUser(ctx, model.CurrentUser{ID: userID, Name: name, Role: model.RoleStudent})

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			n, err := sh.WriteCalendar(w)
			if err != nil {
				return fmt.Errorf("write calendar: %w", err)
			}
			logger.Info("calendar exported", "events", n, "output", output)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "User whose starred events to export")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the calendar title")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file (- for stdout)")
	return cmd
}

func loginCmd(g *globals) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials against the campus API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}

			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Enter username: ")
				if _, err := fmt.Fscanln(cmd.InOrStdin(), &username); err != nil {
					return fmt.Errorf("read username: %w", err)
				}
			}
			username = strings.TrimSpace(username)
			if username == "" {
				return errors.New("username cannot be empty")
			}

			password, err := readPasswordWithMask("Enter password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password cannot be empty")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			user, err := newClient(cfg, logger).Login(ctx, username, password)
			if err != nil {
				if api.StatusOf(err) == http.StatusUnauthorized {
					return errors.New("invalid username or password")
				}
				return fmt.Errorf("login: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(user)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted when empty)")
	return cmd
}

func newClient(cfg config.Config, logger *slog.Logger) *api.Client {
	return api.NewClient(cfg.APIBaseURL, api.WithLogger(logger))
}

func newRouter(cfg config.Config, logger *slog.Logger) routing.Router {
	if cfg.Routing.APIKey == "" {
		return routing.Straight{}
	}
	return routing.NewGraphHopper(cfg.Routing.BaseURL, cfg.Routing.APIKey, cfg.Routing.Timeout, routing.WithLogger(logger))
}
