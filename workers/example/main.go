// Command example is a minimal pipes worker: it counts the lines of the file
// named by the INPUT_FILE environment variable and reports the count.
package main

import (
	"bufio"
	"log"
	"os"

	"pipes-runner-server/pipes"
	"pipes-runner-server/pipes/metadata"
)

func main() {
	ctx, err := pipes.Open()
	if err != nil {
		log.Fatal(err)
	}

	rows, err := countLines(os.Getenv("INPUT_FILE"))
	if err != nil {
		ctx.Close(pipes.ExceptionFromError(err))
		os.Exit(1)
	}

	ctx.Logf(pipes.LogInfo, "counted %d rows", rows)
	err = ctx.ReportAssetMaterialization("", pipes.Metadata{
		"rows_processed": metadata.FromInt(rows),
		"source":         metadata.FromPath(os.Getenv("INPUT_FILE")),
	}, "")
	if err != nil {
		log.Fatal(err)
	}
	if err := ctx.Close(nil); err != nil {
		log.Fatal(err)
	}
}

func countLines(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n, sc.Err()
}
