package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"outsy/internal/auth"
	"outsy/internal/config"
	"outsy/internal/directory"
	"outsy/internal/domain/places"
	"outsy/internal/media"
	"outsy/internal/shared/geo"
	"outsy/internal/validation"
)

var (
	loadConfig    = config.Load
	openDirectory = directory.Open
)

// env carries what every subcommand needs once the root has run.
type env struct {
	cfg     config.Config
	logger  *zap.SugaredLogger
	verbose bool
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "places",
		Short:         "Query and edit the place directory",
		Long:          `Command line access to the place directory used by the API: search, list categories, add places and mint tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			e.cfg = cfg
			e.logger = newLogger(cmd.ErrOrStderr(), e.verbose)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if e.logger != nil {
				_ = e.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newSearchCmd(e),
		newCategoriesCmd(e),
		newAddCmd(e),
		newTokenCmd(e),
	)
	return root
}

func newLogger(w io.Writer, verbose bool) *zap.SugaredLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), level)
	return zap.New(core).Sugar()
}

func (e *env) service(ctx context.Context, uploader media.Uploader) (*places.Service, func(), error) {
	dir, closeDir, err := openDirectory(ctx, e.cfg, e.logger)
	if err != nil {
		return nil, nil, err
	}
	return places.NewService(dir, uploader, e.logger), closeDir, nil
}

func newSearchCmd(e *env) *cobra.Command {
	var (
		query    string
		owner    string
		category string
		radius   float64
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Filter every place in the directory",
		Long:  `Loads the whole directory once and applies the text, category and radius filters. The radius only applies when --lat and --lng are both given.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := places.SearchFilter{Query: query}
			if cmd.Flags().Changed("category") {
				f = f.WithCategory(category)
			}
			if cmd.Flags().Changed("radius") {
				if radius < 0 || math.IsNaN(radius) {
					return fmt.Errorf("invalid radius %v", radius)
				}
				f = f.WithRadius(radius)
			}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				origin := geo.Point{Lat: lat, Lng: lng}
				if !origin.Valid() {
					return errors.New("lat/lng out of range")
				}
				f = f.WithOrigin(origin)
			}

			svc, closeDir, err := e.service(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeDir()

			var all []places.Place
			if owner != "" {
				all, err = svc.ListByOwner(cmd.Context(), owner)
			} else {
				all, err = svc.List(cmd.Context())
			}
			if err != nil {
				return err
			}

			cat := places.NewCatalog()
			cat.Replace(all)
			found := cat.Search(f)
			e.logger.Debugw("search done", "total", cat.Len(), "matched", len(found))
			return printJSON(cmd.OutOrStdout(), found)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Case-insensitive text to look for in name and description")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Exact category")
	cmd.Flags().StringVar(&owner, "owner", "", "Only places owned by this user id")
	cmd.Flags().Float64VarP(&radius, "radius", "r", 0, "Search radius in km")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Origin latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Origin longitude")
	return cmd
}

func newCategoriesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the distinct categories in the directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDir, err := e.service(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeDir()

			all, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), places.AvailableCategories(all))
		},
	}
}

func newAddCmd(e *env) *cobra.Command {
	var (
		in        places.NewPlace
		imagePath string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a place on behalf of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				in.Image = data
			}

			var uploader media.Uploader = media.Disabled{}
			if e.cfg.CloudinaryURL != "" {
				cld, err := media.NewCloudinary(e.cfg.CloudinaryURL)
				if err != nil {
					return err
				}
				uploader = cld
			} else if len(in.Image) > 0 {
				e.logger.Warn("CLOUDINARY_URL not set, the image will be skipped")
			}

			svc, closeDir, err := e.service(cmd.Context(), uploader)
			if err != nil {
				return err
			}
			defer closeDir()

			id, err := svc.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"id": id})
		},
	}

	cmd.Flags().StringVar(&in.OwnerID, "owner", "", "Owner user id")
	cmd.Flags().StringVar(&in.Name, "name", "", "Place name")
	cmd.Flags().StringVar(&in.Category, "category", "", "Place category")
	cmd.Flags().StringVar(&in.Description, "description", "", "Place description")
	cmd.Flags().Float64Var(&in.Location.Lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&in.Location.Lng, "lng", 0, "Longitude")
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to a JPEG image")
	return cmd
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		claims auth.Claims
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if claims.Subject == "" {
				return errors.New("--sub is required")
			}
			if msg := validation.Var(claims.Role, "oneof="+auth.RoleUser+" "+auth.RoleOwner); msg != "" {
				return fmt.Errorf("--role %s", msg)
			}

			authenticator := auth.NewJWTAuthenticator(e.cfg.AuthTokenSecret, e.cfg.AuthTokenIss, e.cfg.AuthTokenIss)
			token, err := authenticator.GenerateToken(claims, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&claims.Subject, "sub", "", "User id")
	cmd.Flags().StringVar(&claims.Role, "role", auth.RoleUser, "Role: user or owner")
	cmd.Flags().StringVar(&claims.Username, "name", "", "Display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
