package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/schaermu/p4vhelper/internal/console"
	"github.com/schaermu/p4vhelper/internal/handoff"
	"github.com/schaermu/p4vhelper/internal/layout"
)

// targetFlags select the content folder a command works on.
type targetFlags struct {
	root    string
	version string
	method  string
	app     string
	sfCase  string
	payload string
}

func (tf *targetFlags) register(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&tf.root, "root", "", "workspace root (default is the last one used)")
	flags.StringVar(&tf.version, "ue", "", "earliest UE version, X.Y")
	flags.StringVar(&tf.method, "method", "", "distribution method (AssetPacks, CompleteProjects, Plugins)")
	flags.StringVar(&tf.app, "app", "", "app name")
	flags.StringVar(&tf.sfCase, "case", "", "SF case number")
	flags.StringVar(&tf.payload, "payload", "", "product data JSON from the SF Helper (file, or - for stdin)")
}

// fields is the merged view of flags and payload. Flags win over the payload.
type fields struct {
	root    string
	version string
	method  layout.Method
	app     string
	sfCase  string
}

// resolveFields merges the flags with the payload and the session root. A
// malformed payload is reported and the flags are used alone.
func (a *app) resolveFields(env *cmdEnv) (fields, error) {
	tf := env.target
	f := fields{
		root:    tf.root,
		version: strings.TrimSpace(tf.version),
		app:     strings.TrimSpace(tf.app),
		sfCase:  strings.TrimSpace(tf.sfCase),
	}
	if f.root == "" {
		f.root = a.session.Root
	}

	method := tf.method
	if tf.payload != "" {
		p, err := readPayload(env, tf.payload)
		if err != nil {
			a.logger.Warn("ignoring product data", "error", err)
			a.console.Log(console.Error, err.Error())
			a.console.Log(console.Hint, handoff.MalformedHint)
		} else {
			if f.version == "" {
				f.version = p.EarliestUEVersion
			}
			if f.app == "" {
				f.app = p.AppName
			}
			if f.sfCase == "" {
				f.sfCase = p.SFCase
			}
			if method == "" {
				m, err := p.Method()
				if err != nil {
					return fields{}, err
				}
				method = string(m)
			}
		}
	}

	if method == "" {
		f.method = layout.AssetPacks
	} else {
		m, err := layout.ParseMethod(method)
		if err != nil {
			return fields{}, err
		}
		f.method = m
	}
	return f, nil
}

// resolveTarget builds the target path from flags and payload.
func (a *app) resolveTarget(env *cmdEnv) (layout.Path, fields, error) {
	f, err := a.resolveFields(env)
	if err != nil {
		return layout.Path{}, f, err
	}
	target, err := layout.Resolve(f.root, f.version, f.method, f.app)
	return target, f, err
}

func readPayload(env *cmdEnv, source string) (handoff.Payload, error) {
	var r io.Reader
	if source == "-" {
		r = env.reader()
	} else {
		file, err := appFs.Open(source)
		if err != nil {
			return handoff.Payload{}, fmt.Errorf("failed to read product data: %w", err)
		}
		defer func() { _ = file.Close() }()
		r = file
	}
	return handoff.Decode(r)
}
