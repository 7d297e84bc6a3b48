package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/hwbuftransport/dmai"
	"github.com/xaionaro-go/hwbuftransport/logger"
	"github.com/xaionaro-go/hwbuftransport/omx"
	"github.com/xaionaro-go/hwbuftransport/omx/softcomponent"
	"github.com/xaionaro-go/observability"
	"go.uber.org/atomic"
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "syntax: %s [flags]\n", os.Args[0])
		pflag.PrintDefaults()
	}

	loggerLevel := logger.LevelWarning
	pflag.Var(&loggerLevel, "log-level", "Log level")
	frames := pflag.Int("frames", 100, "amount of frames to pass through the pipeline")
	outputBuffers := pflag.Int("output-buffers", 4, "amount of buffers of the capture component output port (1..10)")
	numBufs := pflag.Int("buffers", 4, "amount of buffers in the encoder BufTab")
	bufferSize := pflag.Int("buffer-size", 64*1024, "size of each buffer in bytes")
	consumers := pflag.Int("consumers", 2, "amount of downstream consumers")
	holdTime := pflag.Duration("hold-time", 5*time.Millisecond, "how long a consumer keeps a buffer")
	destroyPoolAfter := pflag.Int("destroy-pool-after", 50, "replace the encoder BufTab after this many frames; 0 disables")
	netPprofAddr := pflag.String("net-pprof-listen-addr", "", "an address to listen for incoming net/pprof connections")
	pflag.Parse()
	if len(pflag.Args()) != 0 {
		pflag.Usage()
		os.Exit(1)
	}

	l := logrus.Default().WithLevel(loggerLevel)
	ctx := logger.CtxWithLogger(context.Background(), l)
	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	logger.SetDefault(func() logger.Logger {
		return l
	})
	defer belt.Flush(ctx)

	if *netPprofAddr != "" {
		observability.Go(ctx, func(ctx context.Context) { l.Error(http.ListenAndServe(*netPprofAddr, nil)) })
	}

	capture, err := softcomponent.New(ctx, softcomponent.Config{
		OutputBuffers: *outputBuffers,
		BufferSize:    *bufferSize,
		Fill: func(ctx context.Context, seq uint64, out []byte) int {
			for i := range out {
				out[i] = byte(seq) + byte(i)
			}
			return len(out)
		},
	})
	if err != nil {
		l.Fatal(err)
	}
	defer capture.Close(ctx)

	for _, hdr := range capture.OutputHeaders() {
		if err := capture.FillThisBuffer(ctx, hdr); err != nil {
			l.Fatal(err)
		}
	}

	startedAt := time.Now()
	srcCfg := omx.DefaultPortSourceConfig()
	srcCfg.Clock = func() time.Duration { return time.Since(startedAt) }
	src := omx.NewPortSource(capture.OutputPort(), capture.FillBufferDone(), srcCfg)

	registry := dmai.NewRegistry()
	owner, err := dmai.NewOwnedBufTab(ctx, registry, *numBufs, *bufferSize)
	if err != nil {
		l.Fatal(err)
	}

	var bytesCopied atomic.Uint64
	queue := make(chan *dmai.Transport, *consumers)
	var wg sync.WaitGroup
	for i := 0; i < *consumers; i++ {
		wg.Add(1)
		observability.Go(ctx, func(ctx context.Context) {
			defer wg.Done()
			for t := range queue {
				time.Sleep(*holdTime)
				bytesCopied.Add(uint64(t.Size()))
				t.Unref(ctx)
			}
		})
	}

	for frame := 0; frame < *frames; frame++ {
		if *destroyPoolAfter > 0 && frame > 0 && frame%*destroyPoolAfter == 0 {
			logger.Infof(ctx, "replacing %v", owner)
			oldOwner := owner
			owner, err = dmai.NewOwnedBufTab(ctx, registry, *numBufs, *bufferSize)
			if err != nil {
				l.Fatal(err)
			}
			oldOwner.Unref(ctx)
		}

		in, err := src.Next(ctx)
		if err != nil {
			l.Fatal(err)
		}

		buf, err := owner.GetFreeBuf(ctx)
		if err != nil {
			l.Fatal(err)
		}
		out, err := dmai.NewTransport(ctx, registry, buf, dmai.TransportConfig{
			Rendezvous: owner.Rendezvous,
		})
		buf.FreeUseMask(ctx, dmai.UseMaskCodec)
		if err != nil {
			l.Fatal(err)
		}
		copy(out.Data(), in.Data())
		in.Unref(ctx)
		queue <- out
	}
	close(queue)
	wg.Wait()
	owner.Unref(ctx)

	captureStats := capture.Stats()
	orphanStats := registry.Stats()
	fmt.Printf(
		"frames:%d copied:%s captured:%d returned:%d orphans-registered:%d orphans-consumed:%d elapsed:%v\n",
		*frames,
		humanize.Bytes(bytesCopied.Load()),
		captureStats.FillBufferDone,
		captureStats.FillThisBuffer,
		orphanStats.Registered,
		orphanStats.Consumed,
		time.Since(startedAt),
	)
}
