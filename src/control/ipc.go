package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/jinjor/desktop-synth/src/audio"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultSocketFile is the unix socket used by ServeIPC.
const DefaultSocketFile = "/tmp/desktop-synth.sock"

// ServeIPC accepts one client on a unix socket, executes the text commands
// it sends and writes a stats line back every reportInterval.
func ServeIPC(ctx context.Context, sockFile string, d *Dispatcher, stats func() audio.Stats, reportInterval time.Duration) error {
	return withIPCConnection(ctx, sockFile, func(conn net.Conn) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			// the session ends when the client hangs up
			defer cancel()
			return receiveCommands(ctx, conn, d)
		})
		g.Go(func() error {
			return sendReports(ctx, conn, stats, reportInterval)
		})
		return g.Wait()
	})
}

func withIPCConnection(ctx context.Context, sockFile string, f func(net.Conn) error) error {
	os.Remove(sockFile)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFile)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", sockFile)
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(sockFile)
	}()
	stop := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stop()
	log.Printf("start listening on %s...\n", sockFile)
	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "failed to accept IPC connection")
	}
	defer func() {
		err := conn.Close()
		if err != nil && !errors.Is(err, net.ErrClosed) {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	stopConn := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stopConn()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, d *Dispatcher) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF || ctx.Err() != nil {
			break loop
		}
		if err != nil {
			return errors.Wrap(err, "failed to read command")
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		if _, err := d.Exec(string(line)); err != nil {
			log.Printf("invalid command %q: %v\n", string(line), err)
		} else {
			log.Printf("received: %s\n", string(line))
		}
		line = line[:0]
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func formatStats(s audio.Stats) string {
	return fmt.Sprintf("stats %d %d %d %d %d %d %d",
		s.Frames, s.ActiveVoices, s.Steals, s.ClippedSamples, s.Underruns, s.DroppedCommands, s.Faults)
}

func sendReports(ctx context.Context, conn net.Conn, stats func() audio.Stats, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			if _, err := conn.Write([]byte(formatStats(stats()) + "\n")); err != nil {
				// the client is gone; receiveCommands ends the session
				log.Printf("failed to send report: %v\n", err)
				break loop
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}
