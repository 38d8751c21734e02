// Command testworker is a pipes worker whose behaviour is picked with
// -scenario. The runner tests build it once and launch it per case.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"time"

	"pipes-runner-server/pipes"
	"pipes-runner-server/pipes/metadata"
)

func main() {
	scenario := flag.String("scenario", "success", "success|fail|exit|malformed|noclose|sleep|panic|stderr|checks")
	rows := flag.Int64("rows", 42, "rows_processed reported on success")
	exitCode := flag.Int("exit-code", 3, "exit code for the exit scenario")
	sleep := flag.Duration("sleep", time.Minute, "sleep duration for the sleep scenario")
	stderrBytes := flag.Int("stderr-bytes", 128<<10, "bytes written by the stderr scenario")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("testworker: ")

	ctx, err := pipes.Open()
	if err != nil {
		log.Fatalf("open pipes: %v", err)
	}

	defer func() {
		if v := recover(); v != nil {
			_ = ctx.Close(pipes.ExceptionFromPanic(v, debug.Stack()))
			os.Exit(1)
		}
	}()

	switch *scenario {
	case "success":
		report(ctx, *rows)
		mustClose(ctx, nil)

	case "checks":
		report(ctx, *rows)
		sev := pipes.SeverityWarn
		must(ctx.ReportAssetCheck("row_count_positive", *rows > 0, "", &sev, pipes.Metadata{
			"rows": metadata.FromInt(*rows),
		}))
		must(ctx.ReportCustomMessage(map[string]any{"rows": *rows}))
		must(ctx.Log(pipes.LogInfo, "checks done"))
		mustClose(ctx, nil)

	case "fail":
		must(ctx.Log(pipes.LogError, "about to fail"))
		mustClose(ctx, pipes.ExceptionFromError(fmt.Errorf("load rows: %w", errors.New("source unavailable"))))

	case "exit":
		report(ctx, *rows)
		os.Exit(*exitCode)

	case "malformed":
		writeRaw("{this is not json\n")
		mustClose(ctx, nil)

	case "noclose":
		report(ctx, *rows)

	case "sleep":
		time.Sleep(*sleep)
		mustClose(ctx, nil)

	case "panic":
		panic("worker exploded")

	case "stderr":
		chunk := make([]byte, 1024)
		for i := range chunk {
			chunk[i] = 'x'
		}
		for n := 0; n < *stderrBytes; n += len(chunk) {
			os.Stderr.Write(chunk)
		}
		fmt.Fprint(os.Stderr, "\nTAIL")
		mustClose(ctx, nil)

	default:
		log.Fatalf("unknown scenario %q", *scenario)
	}
}

func report(ctx *pipes.Context, rows int64) {
	must(ctx.ReportAssetMaterialization("", pipes.Metadata{
		"rows_processed": metadata.FromInt(rows),
		"run_id":         metadata.FromText(ctx.Data.RunID),
	}, ""))
}

// writeRaw bypasses the message channel to put bytes on the wire as-is.
func writeRaw(line string) {
	params, err := pipes.NewEnvVarLoader().LoadMessageParams()
	if err != nil {
		log.Fatal(err)
	}
	path, ok, err := params.String(pipes.ParamPath)
	if err != nil {
		log.Fatal(err)
	}
	if !ok {
		fmt.Print(line)
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		log.Fatal(err)
	}
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func mustClose(ctx *pipes.Context, exc *pipes.Exception) {
	must(ctx.Close(exc))
}
