package client

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/MKhiriev/kdbx-keeper/internal/config"
	"github.com/MKhiriev/kdbx-keeper/internal/crypto"
	"github.com/MKhiriev/kdbx-keeper/internal/kdbx"
	"github.com/MKhiriev/kdbx-keeper/internal/logger"
	"github.com/MKhiriev/kdbx-keeper/internal/service"
	"github.com/MKhiriev/kdbx-keeper/internal/workers"
	"github.com/MKhiriev/kdbx-keeper/models"
)

const usage = `usage: kdbxctl [flags] <command> [args]

commands:
  info <file>                         print the container header
  create [-name N] [-keyfile F] <file>
                                      create an empty database
  merge [-keyfile F] [-source-keyfile F] [-ask-source] [-o out] <target> <source>
                                      merge source into target
  convert [-keyfile F] <src> <dst>    re-encrypt src as --format into dst
  journal [-n N] [merge-id]           list journaled merges or show one
  version                             print build information`

type App struct {
	svc       service.DatabaseService
	cfg       *config.StructuredConfig
	buildInfo models.AppBuildInfo

	out          io.Writer
	readPassword PasswordReader

	logger *logger.Logger
}

func NewApp(services *service.Services, cfg *config.StructuredConfig, buildInfo models.AppBuildInfo, readPassword PasswordReader, out io.Writer, logger *logger.Logger) *App {
	return &App{
		svc:          services.DatabaseService,
		cfg:          cfg,
		buildInfo:    buildInfo,
		out:          out,
		readPassword: readPassword,
		logger:       logger,
	}
}

func (a *App) Run(ctx context.Context, args []string) error {
	ctx = a.logger.WithContext(ctx)

	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, usage)
	}

	cmd, rest := args[0], args[1:]
	a.logger.Debug().Str("func", "*App.Run").Str("command", cmd).Msg("running command")

	switch cmd {
	case "info":
		return a.info(ctx, rest)
	case "create":
		return a.create(ctx, rest)
	case "merge":
		return a.merge(ctx, rest)
	case "convert":
		return a.convert(ctx, rest)
	case "journal":
		return a.journal(ctx, rest)
	case "version":
		_, err := fmt.Fprintln(a.out, a.buildInfo)
		return err
	case "help", "-h", "--help":
		_, err := fmt.Fprintln(a.out, usage)
		return err
	default:
		return fmt.Errorf("%w: %q\n%s", ErrUnknownCommand, cmd, usage)
	}
}

func (a *App) info(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: info takes one file", ErrUsage)
	}

	info, err := a.svc.Info(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, info)
	return err
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	name := fs.String("name", "", "database name")
	keyFile := fs.String("keyfile", "", "key file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: create takes one file", ErrUsage)
	}
	path := fs.Arg(0)

	version, err := a.formatVersion()
	if err != nil {
		return err
	}
	key, err := a.compositeKey(fmt.Sprintf("Password for %s: ", path), *keyFile)
	if err != nil {
		return err
	}

	db, err := a.svc.Create(ctx, *name)
	if err != nil {
		return err
	}
	if err = a.svc.Save(ctx, path, db, key, version); err != nil {
		return err
	}

	_, err = fmt.Fprintf(a.out, "Created %s (%s)\n", path, version)
	return err
}

func (a *App) merge(ctx context.Context, args []string) error {
	fs := newFlagSet("merge")
	keyFile := fs.String("keyfile", "", "key file of the target")
	sourceKeyFile := fs.String("source-keyfile", "", "key file of the source")
	askSource := fs.Bool("ask-source", false, "prompt for a separate source password")
	output := fs.String("o", "", "write the result here instead of the target")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: merge takes a target and a source", ErrUsage)
	}
	targetPath, sourcePath := fs.Arg(0), fs.Arg(1)
	if *output == "" {
		*output = targetPath
	}

	targetKey, err := a.compositeKey(fmt.Sprintf("Password for %s: ", targetPath), *keyFile)
	if err != nil {
		return err
	}
	sourceKey := targetKey
	if *askSource || *sourceKeyFile != "" {
		if sourceKey, err = a.compositeKey(fmt.Sprintf("Password for %s: ", sourcePath), *sourceKeyFile); err != nil {
			return err
		}
	}

	info, err := a.svc.Info(ctx, targetPath)
	if err != nil {
		return err
	}

	var target, source *models.Database
	err = workers.New(
		workers.WorkerFunc(func(ctx context.Context) (err error) {
			target, err = a.svc.Open(ctx, targetPath, targetKey)
			return err
		}),
		workers.WorkerFunc(func(ctx context.Context) (err error) {
			source, err = a.svc.Open(ctx, sourcePath, sourceKey)
			return err
		}),
	).Run(ctx)
	if err != nil {
		return err
	}

	report, err := a.svc.Merge(ctx, service.MergeRequest{TargetPath: targetPath, SourcePath: sourcePath}, target, source)
	if err != nil {
		return err
	}

	for _, line := range report.Lines() {
		fmt.Fprintln(a.out, line)
	}
	if !report.Modified && *output == targetPath {
		_, err = fmt.Fprintln(a.out, "Databases are already in sync")
		return err
	}

	if err = a.svc.Save(ctx, *output, target, targetKey, info.Format); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "Saved %s\n", *output)
	return err
}

func (a *App) convert(ctx context.Context, args []string) error {
	fs := newFlagSet("convert")
	keyFile := fs.String("keyfile", "", "key file")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: convert takes a source and a destination", ErrUsage)
	}
	src, dst := fs.Arg(0), fs.Arg(1)

	version, err := a.formatVersion()
	if err != nil {
		return err
	}
	key, err := a.compositeKey(fmt.Sprintf("Password for %s: ", src), *keyFile)
	if err != nil {
		return err
	}

	if err = a.svc.Convert(ctx, src, dst, key, version); err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "Converted %s to %s (%s)\n", src, dst, version)
	return err
}

func (a *App) journal(ctx context.Context, args []string) error {
	fs := newFlagSet("journal")
	limit := fs.Uint64("n", 20, "number of merges to list, 0 for all")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}

	switch fs.NArg() {
	case 0:
		records, err := a.svc.Journal(ctx, *limit)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Fprintf(a.out, "%d\t%s\t%s <- %s\tmodified=%t\n",
				r.ID, r.MergedAt.Local().Format("2006-01-02 15:04:05"), r.Target, r.Source, r.Modified)
		}
		return nil
	case 1:
		id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad merge id %q", ErrUsage, fs.Arg(0))
		}
		changes, err := a.svc.JournalChanges(ctx, id)
		if err != nil {
			return err
		}
		for _, c := range changes {
			if c.UUID.IsNil() {
				fmt.Fprintf(a.out, "%s %s\n", c.Action, c.Name)
				continue
			}
			fmt.Fprintf(a.out, "%s %s [%s]\n", c.Action, c.Name, c.UUID)
		}
		return nil
	default:
		return fmt.Errorf("%w: journal takes at most one merge id", ErrUsage)
	}
}

func (a *App) formatVersion() (kdbx.FormatVersion, error) {
	return kdbx.ParseFormatVersion(a.cfg.Format.Version)
}

func (a *App) compositeKey(prompt, keyFile string) (*crypto.CompositeKey, error) {
	password, err := a.readPassword(prompt)
	if err != nil {
		return nil, err
	}
	key := crypto.NewPasswordKey(password)

	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		if err = key.AddKeyFile(data); err != nil {
			return nil, err
		}
	}
	return key, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}
