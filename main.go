package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/pdok/xyz2wmts/settings"
	"github.com/pdok/xyz2wmts/viewer"
	"github.com/pdok/xyz2wmts/wmts"
	"github.com/pdok/xyz2wmts/xmltree"
)

const SETTINGS string = `settings`
const VIEWER string = `viewer`
const BASEURL string = `baseurl`
const OUTPUT string = `output`
const INDENT string = `indent`
const LOGLEVEL string = `loglevel`

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		logrus.Fatal(err)
	}
}

//nolint:funlen
func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "xyz2wmts"
	app.Usage = "Generates a WMTS Capabilities document for XYZ tile layers"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:     SETTINGS,
			Aliases:  []string{"s"},
			Usage:    "Settings file, YAML (.yaml, .yml) or JSON (.json)",
			Required: true,
			EnvVars:  []string{strcase.ToScreamingSnake(SETTINGS)},
		},
		&cli.StringFlag{
			Name:     VIEWER,
			Aliases:  []string{"w"}, // -v is --version
			Usage:    "HTML viewer page whose tile layer is added as an extra layer",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(VIEWER)},
		},
		&cli.StringFlag{
			Name:     BASEURL,
			Aliases:  []string{"b"},
			Usage:    "Base URL of the viewer's tiles. Also used for the metadata URL. E.g.: https://example.com/tiles",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(BASEURL)},
		},
		&cli.StringFlag{
			Name:     OUTPUT,
			Aliases:  []string{"o"},
			Usage:    "Target file for the Capabilities document, stdout when empty. Only written when generating succeeds",
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(OUTPUT)},
		},
		&cli.IntFlag{
			Name:     INDENT,
			Usage:    "Spaces per nesting level in the output",
			Value:    xmltree.DefaultIndent,
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(INDENT)},
		},
		&cli.StringFlag{
			Name:     LOGLEVEL,
			Usage:    "Log level: debug, info, warning or error",
			Value:    logrus.InfoLevel.String(),
			Required: false,
			EnvVars:  []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
	}

	app.Action = func(c *cli.Context) error {
		logger := logrus.New()
		logger.Out = c.App.ErrWriter
		level, err := logrus.ParseLevel(c.String(LOGLEVEL))
		if err != nil {
			return err
		}
		logger.SetLevel(level)

		var out bytes.Buffer
		err = generate(options{
			settingsPath: c.String(SETTINGS),
			viewerPath:   c.String(VIEWER),
			baseURL:      c.String(BASEURL),
			indent:       c.Int(INDENT),
		}, &out, logger)
		if err != nil {
			return err
		}
		return writeOutput(c.String(OUTPUT), c.App.Writer, out.Bytes())
	}
	return app
}

// writeOutput writes to the target file, or to stdout when there is no target
func writeOutput(target string, stdout io.Writer, data []byte) error {
	if target == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("could not write output file: %w", err)
	}
	return nil
}

type options struct {
	settingsPath string
	viewerPath   string
	baseURL      string
	indent       int
}

func generate(opts options, out io.Writer, logger *logrus.Logger) error {
	s, err := settings.Load(opts.settingsPath)
	if err != nil {
		return err
	}

	if opts.viewerPath != "" {
		cfg, err := scrapeViewer(opts.viewerPath)
		if err != nil {
			return err
		}
		viewer.Apply(s, cfg, opts.baseURL)
		logger.WithField("viewer", opts.viewerPath).Debugf("added layer %s", viewer.OverlayIdentifier)
	}

	caps, err := wmts.BuildCapabilities(s, wmts.WithLogger(logger))
	if err != nil {
		return err
	}
	if err = xmltree.Encode(out, caps.Root, opts.indent); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"layers":         len(caps.Layers),
		"skipped":        len(caps.Skipped),
		"tilematrixsets": len(caps.TileMatrixSets),
	}).Info("capabilities generated")
	logger.Infof("metadata URL: %s", s.MetadataURL)
	return nil
}

func scrapeViewer(p string) (viewer.Config, error) {
	f, err := os.Open(p)
	if err != nil {
		return viewer.Config{}, fmt.Errorf("could not open viewer %s: %w", p, err)
	}
	defer f.Close()
	cfg, err := viewer.Scrape(f)
	if err != nil {
		return viewer.Config{}, fmt.Errorf("could not read viewer %s: %w", p, err)
	}
	return cfg, nil
}
