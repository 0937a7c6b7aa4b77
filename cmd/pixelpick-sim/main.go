// Command pixelpick-sim plays a scripted cursor sweep against a running
// pixelpick instance, standing in for the browser userscript.
//
// Usage:
//
//	pixelpick-sim -origin 1024,680,312,455 -width 64 -height 64
//	pixelpick-sim -grpc localhost:8788 -watch
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixelpick/internal/coords"
	"pixelpick/internal/grpcserver"
	"pixelpick/internal/logging"
	"pixelpick/internal/sample"
)

func main() {
	target := flag.String("url", "http://localhost:8787/coords", "HTTP ingress URL")
	grpcAddr := flag.String("grpc", "", "push over gRPC to this address instead of HTTP")
	watchEvents := flag.Bool("watch", false, "print surfaced events from the gRPC Watch stream")
	originFlag := flag.String("origin", "0,0,0,0", "template origin tileX,tileY,pxX,pyY")
	width := flag.Int("width", 16, "sweep width in pixels")
	height := flag.Int("height", 16, "sweep height in pixels")
	step := flag.Int("step", 4, "pixels between samples")
	tileSize := flag.Int("tile-size", 1000, "tileSize sent with each sample")
	interval := flag.Duration("interval", 150*time.Millisecond, "delay between samples")
	failures := flag.Bool("failures", true, "interleave canvas_not_found and map_not_found reports")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.New(*logLevel, "text")

	origin, err := coords.ParseOrigin(*originFlag)
	if err != nil {
		logger.Error("pixelpick-sim: bad origin", "error", err)
		os.Exit(1)
	}
	if *step < 1 || *tileSize < 1 {
		logger.Error("pixelpick-sim: step and tile-size must be positive")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var push func(context.Context, sample.TileSample) error
	if *grpcAddr != "" {
		client, err := grpcserver.Dial(*grpcAddr)
		if err != nil {
			logger.Error("pixelpick-sim: dial", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		push = client.Push
		if *watchEvents {
			go watch(ctx, client, logger)
		}
	} else {
		push = httpPusher(*target)
	}

	script := sweep(origin, *width, *height, *step, *tileSize, *failures)
	logger.Info("sweep starting", "samples", len(script), "origin", origin.String())

	sent := 0
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for _, ts := range script {
		select {
		case <-ctx.Done():
			logger.Info("sweep interrupted", "sent", sent)
			return
		case <-ticker.C:
		}
		if err := push(ctx, ts); err != nil {
			logger.Warn("push failed", "error", err)
			continue
		}
		sent++
	}
	logger.Info("sweep finished", "sent", sent)

	if *watchEvents && *grpcAddr != "" {
		// give the last events time to arrive
		select {
		case <-ctx.Done():
		case <-time.After(2 * time.Second):
		}
	}
}

// sweep walks the template row by row, one step beyond each edge so the
// out-of-bounds path is exercised too.
func sweep(origin coords.Origin, width, height, step, tileSize int, failures bool) []sample.TileSample {
	var script []sample.TileSample
	if failures {
		script = append(script,
			sample.TileSample{Valid: false, Reason: "canvas_not_found"},
			sample.TileSample{Valid: false, Reason: "map_not_found"},
		)
	}
	baseX := origin.TileX*tileSize + origin.PixelX
	baseY := origin.TileY*tileSize + origin.PixelY
	for y := -step; y < height+step; y += step {
		for x := -step; x < width+step; x += step {
			gx, gy := baseX+x, baseY+y
			script = append(script, sample.TileSample{
				Valid:    true,
				TileX:    floorDiv(gx, tileSize),
				TileY:    floorDiv(gy, tileSize),
				PixelX:   floorMod(gx, tileSize),
				PixelY:   floorMod(gy, tileSize),
				TileSize: tileSize,
				CellX:    gx,
				CellY:    gy,
			})
		}
	}
	return script
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

func httpPusher(target string) func(context.Context, sample.TileSample) error {
	client := &http.Client{Timeout: 2 * time.Second}
	return func(ctx context.Context, ts sample.TileSample) error {
		body, err := json.Marshal(ts)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("ingress returned %s", resp.Status)
		}
		return nil
	}
}

func watch(ctx context.Context, client *grpcserver.Client, logger *slog.Logger) {
	stream, err := client.Watch(ctx)
	if err != nil {
		logger.Warn("watch failed", "error", err)
		return
	}
	for {
		rec, err := stream.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Warn("watch ended", "error", err)
			}
			return
		}
		line, _ := json.Marshal(rec)
		fmt.Println(string(line))
	}
}
