// Command morph converts AI agent records between representations without
// losing information, and restores originals byte for byte.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"xdao.co/morph/adapter"
	"xdao.co/morph/adapter/autogen"
	"xdao.co/morph/adapter/lmos"
	"xdao.co/morph/envelope"
	"xdao.co/morph/keys"
	"xdao.co/morph/morph"
	"xdao.co/morph/shadow"
	"xdao.co/morph/storage/localfs"
)

const (
	exitOK         = 0
	exitValidation = 1
	exitCrypto     = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return exitValidation
	}

	switch args[0] {
	case "convert":
		return cmdConvert(args[1:], out, errOut)
	case "restore":
		return cmdRestore(args[1:], out, errOut)
	case "validate":
		return cmdValidate(args[1:], out, errOut)
	case "keygen":
		return cmdKeygen(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return exitOK
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return exitValidation
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "morph: lossless agent record conversion")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  morph convert --from <repr> --to <repr> --input <file> --output <file> [--key <private-key-file>] [--version <v>] [--strategy exact|latest|stable|minimum-compatible|best-effort] [--archive-dir <dir>] [--config <yaml>]")
	fmt.Fprintln(w, "  morph restore --representation <repr> --input <file> --output <file> --restoration-key <key> [--public-key <file>]")
	fmt.Fprintln(w, "  morph validate --input <file> [--representation <repr>]")
	fmt.Fprintln(w, "  morph keygen --output-dir <dir> [--algorithm ed25519|dilithium3] [--name <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - convert prints the restoration key to stdout; it is shown exactly once and never stored")
	fmt.Fprintln(w, "  - restore returns the original record byte for byte")
	fmt.Fprintln(w, "  - --archive-dir files the converted record in a content-addressable archive and prints its CID")
	fmt.Fprintln(w, "  - exit codes: 0 success, 1 validation/usage, 2 cryptographic/integrity failure")
}

func newRegistry() *adapter.Registry {
	r := adapter.NewRegistry()
	_ = r.Register(lmos.New())
	_ = r.Register(autogen.New())
	return r
}

func cmdConvert(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(errOut)
	from := fs.String("from", "", "source representation")
	to := fs.String("to", "", "target representation")
	input := fs.String("input", "", "input record file")
	output := fs.String("output", "", "output record file")
	keyFile := fs.String("key", "", "private key file for signing the shadow")
	version := fs.String("version", "", "requested target representation version")
	strategy := fs.String("strategy", "", "version negotiation strategy")
	archiveDir := fs.String("archive-dir", "", "content-addressable archive directory")
	configFile := fs.String("config", "", "registry configuration YAML")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *from == "" || *to == "" || *input == "" || *output == "" {
		fmt.Fprintln(errOut, "convert: --from, --to, --input and --output are required")
		return exitValidation
	}

	registry := newRegistry()
	opts := morph.ConvertOptions{RequestedVersion: *version}
	if *configFile != "" {
		cfg, err := adapter.LoadConfigFile(*configFile)
		if err != nil {
			fmt.Fprintf(errOut, "convert: %v\n", err)
			return exitValidation
		}
		if err := cfg.Apply(registry); err != nil {
			fmt.Fprintf(errOut, "convert: %v\n", err)
			return exitValidation
		}
		opts.Strategy = cfg.StrategyOrDefault()
	}
	if *strategy != "" {
		parsed, err := adapter.ParseStrategy(*strategy)
		if err != nil {
			fmt.Fprintf(errOut, "convert: %v\n", err)
			return exitValidation
		}
		opts.Strategy = parsed
	}
	if *keyFile != "" {
		kp, err := keys.LoadFile(*keyFile)
		if err != nil {
			fmt.Fprintf(errOut, "convert: load key: %v\n", err)
			return exitValidation
		}
		opts.Signer = kp
		opts.PublicKey = kp.PublicKey
	}

	record, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(errOut, "convert: %v\n", err)
		return exitValidation
	}

	res, err := morph.NewEngine(registry).Convert(record, *from, *to, opts)
	if err != nil {
		fmt.Fprintf(errOut, "convert: %v\n", err)
		return exitCodeFor(err)
	}
	if err := os.WriteFile(*output, res.Record, 0o644); err != nil {
		fmt.Fprintf(errOut, "convert: %v\n", err)
		return exitValidation
	}

	fmt.Fprintf(out, "fingerprint: %s\n", res.Fingerprint)
	fmt.Fprintf(out, "version: %s\n", res.Negotiation.Version)
	if res.Negotiation.Warning != "" {
		fmt.Fprintf(errOut, "warning: %s\n", res.Negotiation.Warning)
	}
	if *archiveDir != "" {
		cas, err := localfs.New(*archiveDir)
		if err != nil {
			fmt.Fprintf(errOut, "convert: archive: %v\n", err)
			return exitValidation
		}
		id, err := cas.Put(res.Record)
		if err != nil {
			fmt.Fprintf(errOut, "convert: archive: %v\n", err)
			return exitValidation
		}
		fmt.Fprintf(out, "cid: %s\n", id)
	}
	// The only copy of the restoration key. Printed last, never stored.
	fmt.Fprintf(out, "restoration-key: %s\n", res.RestorationKey)
	return exitOK
}

func cmdRestore(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("restore", flag.ContinueOnError)
	fs.SetOutput(errOut)
	repr := fs.String("representation", "", "representation the original was sealed from")
	input := fs.String("input", "", "converted record file")
	output := fs.String("output", "", "output file for the original record")
	restorationKey := fs.String("restoration-key", "", "restoration key from the conversion")
	publicKeyFile := fs.String("public-key", "", "public key file for signature verification")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *repr == "" || *input == "" || *output == "" || *restorationKey == "" {
		fmt.Fprintln(errOut, "restore: --representation, --input, --output and --restoration-key are required")
		return exitValidation
	}

	var publicKey string
	if *publicKeyFile != "" {
		pub, err := keys.LoadPublicKeyFile(*publicKeyFile)
		if err != nil {
			fmt.Fprintf(errOut, "restore: %v\n", err)
			return exitValidation
		}
		publicKey = pub
	}

	record, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(errOut, "restore: %v\n", err)
		return exitValidation
	}

	original, err := morph.NewEngine(newRegistry()).Restore(record, *repr, *restorationKey, publicKey)
	if err != nil {
		fmt.Fprintf(errOut, "restore: %v\n", err)
		return exitCodeFor(err)
	}
	if err := os.WriteFile(*output, original, 0o644); err != nil {
		fmt.Fprintf(errOut, "restore: %v\n", err)
		return exitValidation
	}
	fmt.Fprintf(out, "restored %d bytes to %s\n", len(original), *output)
	return exitOK
}

func cmdValidate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(errOut)
	repr := fs.String("representation", "", "representation to validate against (detected when omitted)")
	input := fs.String("input", "", "record file")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}
	if *input == "" {
		fmt.Fprintln(errOut, "validate: --input is required")
		return exitValidation
	}

	record, err := os.ReadFile(*input)
	if err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", err)
		return exitValidation
	}

	report, err := morph.NewEngine(newRegistry()).Validate(record, *repr)
	if err != nil {
		fmt.Fprintf(errOut, "validate: %v\n", err)
		return exitCodeFor(err)
	}

	if report.Detected {
		fmt.Fprintf(out, "representation: %s (detected)\n", report.Representation)
	} else {
		fmt.Fprintf(out, "representation: %s\n", report.Representation)
	}
	fmt.Fprintf(out, "shadow: %v\n", report.HasShadow)
	if report.Fingerprint != "" {
		fmt.Fprintf(out, "fingerprint: %s\n", report.Fingerprint)
	}
	for _, problem := range report.Problems {
		fmt.Fprintf(out, "problem: %s\n", problem)
	}
	if !report.Valid {
		return exitValidation
	}
	fmt.Fprintln(out, "valid")
	return exitOK
}

func cmdKeygen(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(errOut)
	outputDir := fs.String("output-dir", "", "key directory (default ~/.morph/keys)")
	algorithm := fs.String("algorithm", keys.AlgEd25519, "signing algorithm: ed25519 or dilithium3")
	name := fs.String("name", "morph", "key name")
	force := fs.Bool("force", false, "overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return exitValidation
	}

	store, err := keys.NewFSStore(*outputDir)
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return exitValidation
	}
	kp, err := keys.Generate(*algorithm)
	if err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return exitValidation
	}
	if err := store.Save(*name, kp, *force); err != nil {
		fmt.Fprintf(errOut, "keygen: %v\n", err)
		return exitValidation
	}
	fmt.Fprintf(out, "private-key: %s\n", store.PrivatePath(*name))
	fmt.Fprintf(out, "public-key-file: %s\n", store.PublicPath(*name))
	fmt.Fprintf(out, "public-key: %s\n", kp.PublicKey)
	return exitOK
}

// exitCodeFor maps cryptographic and integrity failures to exit code 2;
// everything else is a validation failure.
func exitCodeFor(err error) int {
	var envErr *envelope.Error
	switch {
	case errors.As(err, &envErr),
		errors.Is(err, shadow.ErrIntegrityViolation),
		errors.Is(err, morph.ErrRepresentationMismatch):
		return exitCrypto
	}
	return exitValidation
}
