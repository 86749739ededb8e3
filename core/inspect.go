package core

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/encodeous/icntm/state"
)

// DumpTopology renders the arena for humans: nodes with their FID caches,
// links with their liveness, then the freed table and the QoS planes.
func DumpTopology(t *state.Topology) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Topology (fid_len=%d, mode=%s, tm=%s, rv=%s, rm=%s):\n",
		t.FidLen, t.Mode, t.Label(t.TM), t.Label(t.RV), t.Label(t.RM)))

	sb.WriteString("\nNodes:\n")
	for _, idx := range t.SortedNodes() {
		n := t.Node(idx)
		sb.WriteString(fmt.Sprintf(" - %s (%s, %s)\n", n.Label, n.Name, n.Role))
		sb.WriteString(fmt.Sprintf("   iLID:     %s\n", n.ILID))
		sb.WriteString(fmt.Sprintf("   TM->node: %s\n", n.TMToNode))
		sb.WriteString(fmt.Sprintf("   RV FID:   %s\n", n.RVFID))
		sb.WriteString(fmt.Sprintf("   TM FID:   %s\n", n.TMFID))
	}

	sb.WriteString("\nLinks:\n")
	rt := make([]string, 0)
	for _, l := range t.Links {
		st := "up"
		if !l.Live {
			st = "down"
		}
		rt = append(rt, fmt.Sprintf(" - %s->%s %s %s prio=%d util=%.0f", t.Label(l.From), t.Label(l.To), l.LID, st, l.Priority, l.Utilisation))
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n") + "\n")

	sb.WriteString("\nFreed LIDs:\n")
	rt = make([]string, 0)
	if len(t.Freed) == 0 {
		rt = append(rt, " (none)")
	}
	for k, lid := range t.Freed {
		rt = append(rt, fmt.Sprintf(" - %s->%s %s", t.Label(k.From), t.Label(k.To), lid))
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n") + "\n")

	if len(t.Planes) > 0 {
		sb.WriteString("\nQoS planes:\n")
		for _, p := range slices.Sorted(maps.Keys(t.Planes)) {
			sb.WriteString(fmt.Sprintf(" - %d: %v\n", p, t.Planes[p]))
		}
	}
	return sb.String()
}

// DumpTracker renders the deliveries an RM is tracking.
func DumpTracker(tr *Tracker) string {
	sb := strings.Builder{}
	sb.WriteString("Multicast deliveries:\n")
	if len(tr.Multicast) == 0 {
		sb.WriteString(" (none)\n")
	}
	for _, item := range sortedItems(tr.Multicast) {
		d := tr.Multicast[item]
		sb.WriteString(fmt.Sprintf(" - %s alt=%v\n", item, d.AltPublishers))
		for _, p := range d.Paths.Sorted() {
			sb.WriteString(fmt.Sprintf("   %s\n", p))
		}
	}
	sb.WriteString("\nUnicast deliveries:\n")
	if len(tr.Unicast) == 0 {
		sb.WriteString(" (none)\n")
	}
	for _, item := range sortedItems(tr.Unicast) {
		d := tr.Unicast[item]
		sb.WriteString(fmt.Sprintf(" - %s alt=%v\n", item, d.AltSubscribers))
		for _, pub := range state.SortLabels(mapKeys(d.Paths)) {
			sb.WriteString(fmt.Sprintf("   %s: %s\n", pub, d.Paths[pub]))
		}
	}
	return sb.String()
}

func serveTopology(s *state.State, w http.ResponseWriter, r *http.Request) {
	res, err := s.DispatchWait(func(s *state.State) (any, error) {
		out := DumpTopology(s.Topology)
		if s.Process == state.ProcessRM {
			out += "\n" + DumpTracker(Get[*ResilienceManager](s).Tracker)
		}
		return out, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, res.(string))
}

type changeRecord struct {
	ID          string   `yaml:"id"`
	Removed     bool     `yaml:"removed"`
	LIDs        []string `yaml:"lids"`
	Updates     int      `yaml:"updates"`
	Isolated    []string `yaml:"isolated,omitempty"`
	Reconnected []string `yaml:"reconnected,omitempty"`
}

func recordOf(m Mutation) changeRecord {
	rec := changeRecord{ID: uuid.NewString(), Removed: m.Removed, Updates: len(m.Updates)}
	for _, lid := range m.LIDs {
		rec.LIDs = append(rec.LIDs, lid.String())
	}
	for _, l := range m.Isolated {
		rec.Isolated = append(rec.Isolated, fmt.Sprintf("%x", string(l)))
	}
	for _, l := range m.Reconnected {
		rec.Reconnected = append(rec.Reconnected, fmt.Sprintf("%x", string(l)))
	}
	return rec
}

// dropSlow relays mutations from a broadcaster channel into a bounded queue,
// discarding what the queue cannot hold, so the broadcaster never waits on a
// slow reader. It returns once stop is closed or in is closed.
func dropSlow(in <-chan any, stop <-chan struct{}, size int, log *slog.Logger) <-chan Mutation {
	out := make(chan Mutation, size)
	go func() {
		dropped := 0
		for {
			select {
			case <-stop:
				if dropped > 0 {
					log.Debug("change stream dropped mutations", "count", dropped)
				}
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				m, ok := v.(Mutation)
				if !ok {
					continue
				}
				select {
				case out <- m:
				default:
					dropped++
				}
			}
		}
	}()
	return out
}

// serveChanges streams every graph mutation as a YAML document until the client goes away.
func serveChanges(s *state.State, w http.ResponseWriter, r *http.Request) {
	tm := Get[*TopologyManager](s)
	ch := make(chan any)
	stop := make(chan struct{})
	changes := dropSlow(ch, stop, 16, s.Log)
	tm.Changes.Register(ch)
	defer func() {
		// the relay keeps draining ch until the broadcaster has let go of it
		tm.Changes.Unregister(ch)
		close(stop)
	}()

	w.Header().Set("Content-Type", "application/yaml")
	flusher, _ := w.(http.Flusher)
	for {
		select {
		case <-r.Context().Done():
			return
		case m := <-changes:
			out, err := yaml.Marshal(recordOf(m))
			if err != nil {
				s.Log.Warn("failed to encode change", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "---\n%s", out); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// Inspect fetches the topology dump from a running process.
func Inspect(addr string) (string, error) {
	resp, err := http.Get("http://" + addr + "/debug/topology")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inspect %s: %s: %s", addr, resp.Status, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
