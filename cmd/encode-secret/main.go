// Package main provides a CLI tool to produce SECRET_PHRASE values.
//
// Usage:
//
//	encode-secret [--alg xor|aes] [--decode] [VALUE]
//
// VALUE is read from stdin when omitted. {aes} needs ENCRYPTION_KEY, a base64-encoded
// 32-byte key (openssl rand -base64 32).
//
// Example:
//
//	export ENCRYPTION_KEY="$(openssl rand -base64 32)"
//	export SECRET_PHRASE="$(./encode-secret --alg aes 'open sesame')"
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/onnwee/probe-tender/crypto"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Getenv("ENCRYPTION_KEY")); err != nil {
		slog.Error("encode-secret failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer, encryptionKey string) error {
	fs := flag.NewFlagSet("encode-secret", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	alg := fs.String("alg", crypto.AlgorithmXOR, "encoding algorithm: xor or aes")
	decode := fs.Bool("decode", false, "decode VALUE instead of encoding it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return fmt.Errorf("expected at most one VALUE argument, got %d", fs.NArg())
	}

	value, err := readValue(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	var enc crypto.Encryptor
	if encryptionKey != "" {
		aesEnc, err := crypto.NewAESEncryptor(encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to initialize encryptor: %w", err)
		}
		enc = aesEnc
	}
	codec := crypto.NewPasswordCodec(enc)

	var out string
	if *decode {
		out, err = codec.Decode(value)
	} else {
		out, err = codec.Encode(*alg, value)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, out)
	return err
}

// readValue prefers arg; otherwise it reads the first line of stdin.
func readValue(arg string, stdin io.Reader) (string, error) {
	if arg != "" {
		return arg, nil
	}
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no value given")
	}
	return line, nil
}
