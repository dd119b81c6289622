// msgdump decodes vehicle messages captured from a gateway log. Each input
// line is either a bare hex frame or "<addr>;<hex>"; other gateway lines
// are skipped.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/banshee-data/overdrive/internal/protocol"
	"github.com/banshee-data/overdrive/internal/scanner"
)

type options struct {
	json    bool
	roadmap bool
}

type stats struct {
	Decoded   int
	Malformed int
	Skipped   int
}

// record is one decoded line in -json output.
type record struct {
	Address string           `json:"address,omitempty"`
	Type    string           `json:"type"`
	Message protocol.Message `json:"message"`
}

type subscriber struct {
	t protocol.Type
	h func(protocol.Message)
}

// replay feeds decoded messages to scanner subscriptions in order.
type replay struct {
	subs  map[uuid.UUID]subscriber
	order []uuid.UUID
}

func newReplay() *replay {
	return &replay{subs: make(map[uuid.UUID]subscriber)}
}

func (r *replay) Subscribe(t protocol.Type, h func(protocol.Message)) uuid.UUID {
	id := uuid.New()
	r.subs[id] = subscriber{t: t, h: h}
	r.order = append(r.order, id)
	return id
}

func (r *replay) Unsubscribe(id uuid.UUID) { delete(r.subs, id) }

func (r *replay) publish(m protocol.Message) {
	for _, id := range append([]uuid.UUID(nil), r.order...) {
		if s, ok := r.subs[id]; ok && s.t == m.Type() {
			s.h(m)
		}
	}
}

// splitLine returns the address and hex frame of a capture line. ok is
// false for gateway status lines such as "SCAN;..." or "CONNECT;...".
func splitLine(line string) (addr, frame string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	if i := strings.LastIndexByte(line, ';'); i >= 0 {
		addr, frame = line[:i], line[i+1:]
		switch addr {
		case "SCAN", "CONNECT", "DISCONNECT":
			return "", "", false
		}
		return addr, frame, true
	}
	return "", line, true
}

func dump(in io.Reader, out io.Writer, opts options) (stats, error) {
	var (
		st  stats
		src *replay
		sc  *scanner.Scanner
	)
	if opts.roadmap {
		src = newReplay()
		sc = scanner.New(src, scanner.Options{})
		sc.Start()
	}

	enc := json.NewEncoder(out)
	scan := bufio.NewScanner(in)
	for n := 1; scan.Scan(); n++ {
		addr, frame, ok := splitLine(scan.Text())
		if !ok {
			st.Skipped++
			continue
		}
		m, err := protocol.Decode(frame)
		if err != nil {
			st.Malformed++
			log.Printf("line %d: %v", n, err)
			continue
		}
		st.Decoded++

		if opts.json {
			if err := enc.Encode(record{Address: addr, Type: m.Type().String(), Message: m}); err != nil {
				return st, err
			}
		} else {
			prefix := ""
			if addr != "" {
				prefix = addr + " "
			}
			fmt.Fprintf(out, "%s%s %+v\n", prefix, m.Type(), m)
		}
		if src != nil {
			src.publish(m)
		}
	}
	if err := scan.Err(); err != nil {
		return st, err
	}

	if sc != nil {
		status := sc.Status()
		fmt.Fprintf(out, "roadmap: %d pieces, complete=%t, skipped=%d\n", status.Pieces, status.Complete, status.Skipped)
		fmt.Fprint(out, sc.Roadmap())
	}
	return st, nil
}

func main() {
	var opts options
	flag.BoolVar(&opts.json, "json", false, "print one JSON object per message")
	flag.BoolVar(&opts.roadmap, "roadmap", false, "rebuild the track roadmap from the captured telemetry")
	flag.Parse()

	in := io.Reader(os.Stdin)
	if path := flag.Arg(0); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			log.Fatalf("open %s: %v", path, err)
		}
		defer f.Close()
		in = f
	}

	st, err := dump(in, os.Stdout, opts)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	log.Printf("decoded %d, malformed %d, skipped %d", st.Decoded, st.Malformed, st.Skipped)
}
