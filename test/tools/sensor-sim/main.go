// sensor-sim generates framed PCM audio and pushes it to a running perch
// server over WebSocket, standing in for a real microphone sensor.
//
// Usage:
//
//	go run ./test/tools/sensor-sim --addr localhost:8080
//	go run ./test/tools/sensor-sim --gap-every 200 --jitter 150ms
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aviarylabs/perch/internal/frame"
)

func main() {
	addrFlag := flag.String("addr", "127.0.0.1:8080", "perch server address")
	rateFlag := flag.Int("rate", 48000, "sample rate in Hz")
	frameFlag := flag.Int("frame-samples", 1024, "samples per frame")
	freqFlag := flag.Float64("freq", 440, "tone frequency in Hz")
	durFlag := flag.Duration("duration", 0, "how long to stream (0 = until interrupted)")
	gapFlag := flag.Int("gap-every", 0, "drop one frame every N frames (0 = never)")
	jitterFlag := flag.Duration("jitter", 0, "max random extra delay injected per frame")
	flag.Parse()

	url := fmt.Sprintf("ws://%s/stream", *addrFlag)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", url, err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Printf("streaming to %s (%d Hz, %d samples/frame)\n", url, *rateFlag, *frameFlag)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	frameDur := time.Duration(*frameFlag) * time.Second / time.Duration(*rateFlag)
	ticker := time.NewTicker(frameDur)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if *durFlag > 0 {
		deadline = time.After(*durFlag)
	}

	var seq uint32
	var phase float64
	step := 2 * math.Pi * *freqFlag / float64(*rateFlag)
	start := time.Now()
	sent := 0

	for {
		select {
		case <-stop:
			fmt.Printf("\ninterrupted after %d frames\n", sent)
			return
		case <-deadline:
			fmt.Printf("done: %d frames in %s\n", sent, time.Since(start).Round(time.Millisecond))
			return
		case <-ticker.C:
		}

		if *jitterFlag > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(*jitterFlag))))
		}

		payload := make([]byte, *frameFlag*2)
		for i := 0; i < *frameFlag; i++ {
			s := int16(math.Sin(phase) * 12000)
			payload[2*i] = byte(s)
			payload[2*i+1] = byte(s >> 8)
			phase += step
		}

		f := frame.Frame{
			Sequence:    seq,
			TimestampUS: uint64(time.Now().UnixMicro()),
			Payload:     payload,
		}
		seq++

		if *gapFlag > 0 && sent > 0 && sent%*gapFlag == 0 {
			seq++ // skip a sequence number to exercise gap detection
			continue
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode(f)); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		sent++
	}
}
