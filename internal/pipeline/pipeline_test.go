package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/edgeviewer/internal/colorconv"
	"github.com/smazurov/edgeviewer/internal/display"
	"github.com/smazurov/edgeviewer/internal/edges"
	"github.com/smazurov/edgeviewer/internal/events"
	"github.com/smazurov/edgeviewer/internal/frame"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/metrics"
	"github.com/smazurov/edgeviewer/internal/relay"
	"github.com/smazurov/edgeviewer/internal/snapshot"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *recordingBus) count(match func(events.Event) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if match(ev) {
			n++
		}
	}
	return n
}

type failingEncoder struct{}

func (failingEncoder) Encode(frame.RGBA) (snapshot.Payload, error) {
	return snapshot.Payload{}, errors.New("encoder out of memory")
}

type harness struct {
	pipeline *Pipeline
	display  *relay.Relay[display.Payload]
	network  *relay.Relay[snapshot.Payload]
	bus      *recordingBus
	redraws  int
}

func newHarness(t *testing.T, edgesOn bool, enc Encoder) *harness {
	t.Helper()
	h := &harness{
		display: relay.New[display.Payload](),
		network: relay.New[snapshot.Payload](),
		bus:     &recordingBus{},
	}
	if enc == nil {
		enc = snapshot.NewEncoder(snapshot.Options{})
	}
	h.pipeline = New(Options{
		Gate:             gate.New(edges.NewCanny(), edgesOn, nil),
		Encoder:          enc,
		Display:          h.display,
		Network:          h.network,
		OnDisplayPublish: func() { h.redraws++ },
		EventBus:         h.bus,
	})
	return h
}

func grayRaw(w, h int, y byte, released *int) *frame.Raw {
	data := make([]byte, frame.I420Size(w, h))
	planes := frame.I420Planes(data, w, h)
	for i := range planes[0].Data {
		planes[0].Data[i] = y
	}
	for i := range planes[1].Data {
		planes[1].Data[i] = 128
		planes[2].Data[i] = 128
	}
	return frame.NewRaw(w, h, frame.FormatI420, planes, func() {
		if released != nil {
			*released++
		}
	})
}

func TestGrayFrameRoundTrip(t *testing.T) {
	h := newHarness(t, false, nil)
	released := 0
	raw := grayRaw(4, 4, 128, &released)

	if err := h.pipeline.ProcessFrame(context.Background(), raw); err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if released != 1 {
		t.Errorf("raw released %d times, want 1", released)
	}

	snap, ok := h.network.TakeIfDirty()
	if !ok {
		t.Fatal("network relay empty after ProcessFrame")
	}
	if snap.Width != 4 || snap.Height != 4 || snap.EdgeDetection {
		t.Errorf("snapshot = %dx%d edges=%v", snap.Width, snap.Height, snap.EdgeDetection)
	}
	img, err := jpeg.Decode(bytes.NewReader(snap.JPEG))
	if err != nil {
		t.Fatalf("jpeg.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("decoded size = %v", b)
	}
	gray := img.(*image.Gray)
	for _, v := range gray.Pix {
		if d := int(v) - 128; d < -6 || d > 6 {
			t.Errorf("decoded pixel = %d, want about 128", v)
		}
	}

	disp, ok := h.display.TakeIfDirty()
	if !ok || disp.Width != 4 || len(disp.Pix) != 4*4*4 {
		t.Fatalf("display payload = %+v, %v", disp, ok)
	}
	if disp.Pix[3] != 255 {
		t.Errorf("display alpha = %d, want 255", disp.Pix[3])
	}
	if h.redraws != 1 {
		t.Errorf("redraws = %d, want 1", h.redraws)
	}
}

func TestDisplayPayloadIsACopy(t *testing.T) {
	h := newHarness(t, false, nil)
	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 60, nil)); err != nil {
		t.Fatal(err)
	}
	first, _ := h.display.TakeIfDirty()
	saved := append([]byte(nil), first.Pix...)

	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 200, nil)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first.Pix, saved) {
		t.Error("next frame overwrote a taken display payload")
	}
}

func TestInvalidGeometryPublishesNothing(t *testing.T) {
	h := newHarness(t, false, nil)
	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 100, nil)); err != nil {
		t.Fatal(err)
	}
	_, dispSeq, _ := h.display.Peek()
	prior, netSeq, _ := h.network.Peek()

	released := 0
	bad := grayRaw(4, 4, 50, &released)
	bad.Planes[2].Data = bad.Planes[2].Data[:1]

	err := h.pipeline.ProcessFrame(context.Background(), bad)
	if !errors.Is(err, colorconv.ErrInvalidGeometry) {
		t.Fatalf("ProcessFrame() error = %v, want ErrInvalidGeometry", err)
	}
	if released != 1 {
		t.Errorf("bad frame released %d times, want 1", released)
	}
	if _, seq, _ := h.display.Peek(); seq != dispSeq {
		t.Error("display relay changed after failed frame")
	}
	if cur, seq, _ := h.network.Peek(); seq != netSeq || !bytes.Equal(cur.JPEG, prior.JPEG) {
		t.Error("network relay changed after failed frame")
	}
	if n := h.bus.count(func(ev events.Event) bool {
		e, ok := ev.(events.PipelineErrorEvent)
		return ok && e.Fatal && e.Stage == "convert"
	}); n != 1 {
		t.Errorf("fatal convert events = %d, want 1", n)
	}
}

func TestEncodeFailureKeepsPriorSnapshot(t *testing.T) {
	h := newHarness(t, false, nil)
	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 100, nil)); err != nil {
		t.Fatal(err)
	}
	prior, priorSeq, _ := h.network.Peek()

	h.pipeline.opts.Encoder = failingEncoder{}
	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 30, nil)); err != nil {
		t.Fatalf("ProcessFrame() error = %v, want nil for encode failure", err)
	}

	cur, seq, ok := h.network.Peek()
	if !ok || seq != priorSeq || !bytes.Equal(cur.JPEG, prior.JPEG) {
		t.Error("network relay changed after encode failure")
	}
	if st := h.pipeline.Stats(); st.EncodeErrors != 1 || st.Completed != 2 {
		t.Errorf("Stats() = %+v", st)
	}
	if _, ok := h.display.TakeIfDirty(); !ok {
		t.Error("display relay not updated when only encoding failed")
	}
}

func TestCanceledContextAbortsBeforePublish(t *testing.T) {
	h := newHarness(t, false, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	released := 0
	err := h.pipeline.ProcessFrame(ctx, grayRaw(4, 4, 100, &released))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessFrame() error = %v, want context.Canceled", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}
	if _, _, ok := h.display.Peek(); ok {
		t.Error("display relay holds a payload from an aborted frame")
	}
	if _, _, ok := h.network.Peek(); ok {
		t.Error("network relay holds a payload from an aborted frame")
	}
	if h.pipeline.Stats().Aborted != 1 {
		t.Error("aborted frame not counted")
	}
}

func TestEdgeDetectionApplied(t *testing.T) {
	h := newHarness(t, true, nil)
	// A frame with a vertical step produces edges.
	raw := grayRaw(16, 8, 16, nil)
	y := raw.Planes[0]
	for row := 0; row < 8; row++ {
		for col := 8; col < 16; col++ {
			y.Data[row*y.Stride+col] = 235
		}
	}
	if err := h.pipeline.ProcessFrame(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
	snap, _ := h.network.TakeIfDirty()
	if !snap.EdgeDetection {
		t.Error("snapshot EdgeDetection = false with toggle on")
	}
	disp, _ := h.display.TakeIfDirty()
	white := 0
	for i := 0; i < len(disp.Pix); i += 4 {
		if disp.Pix[i] == 255 {
			white++
		} else if disp.Pix[i] != 0 {
			t.Fatalf("edge map pixel = %d, want 0 or 255", disp.Pix[i])
		}
	}
	if white == 0 {
		t.Error("no edge pixels in processed frame")
	}
}

func TestToggleMidStream(t *testing.T) {
	h := newHarness(t, true, nil)
	if prev := h.pipeline.SetEdgeDetection(false, "test"); !prev {
		t.Errorf("SetEdgeDetection() previous = %v, want true", prev)
	}
	if err := h.pipeline.ProcessFrame(context.Background(), grayRaw(4, 4, 90, nil)); err != nil {
		t.Fatal(err)
	}
	snap, _ := h.network.TakeIfDirty()
	if snap.EdgeDetection {
		t.Error("frame processed with edges after toggle off")
	}
	if got := h.pipeline.ToggleEdgeDetection("test"); !got {
		t.Errorf("ToggleEdgeDetection() = %v, want true", got)
	}
	if n := h.bus.count(func(ev events.Event) bool {
		_, ok := ev.(events.EdgeDetectionChangedEvent)
		return ok
	}); n != 2 {
		t.Errorf("toggle events = %d, want 2", n)
	}
}

func TestConcurrentTogglesKeepGaugeInSync(t *testing.T) {
	h := newHarness(t, false, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(on bool) {
			defer wg.Done()
			h.pipeline.SetEdgeDetection(on, "test")
		}(i%2 == 0)
		go func() {
			defer wg.Done()
			h.pipeline.ToggleEdgeDetection("test")
		}()
	}
	wg.Wait()

	if got, want := metrics.GetPipelineMetrics().EdgeDetection, h.pipeline.EdgeDetection(); got != want {
		t.Errorf("gauge edge detection = %v, gate = %v", got, want)
	}
}

func TestRunProcessesUntilClosed(t *testing.T) {
	h := newHarness(t, false, nil)
	frames := make(chan *frame.Raw)
	done := make(chan error, 1)
	go func() { done <- h.pipeline.Run(context.Background(), frames) }()

	for i := 0; i < 3; i++ {
		frames <- grayRaw(8, 8, byte(50+i), nil)
	}
	close(frames)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after channel close")
	}
	if st := h.pipeline.Stats(); st.Completed != 3 {
		t.Errorf("Completed = %d, want 3", st.Completed)
	}
	if h.display.Stats().Overwritten != 2 {
		t.Errorf("display overwrites = %d, want 2", h.display.Stats().Overwritten)
	}
}

func TestRunStopsOnInvalidGeometry(t *testing.T) {
	h := newHarness(t, false, nil)
	frames := make(chan *frame.Raw, 1)
	bad := grayRaw(4, 4, 1, nil)
	bad.Width = 5
	frames <- bad

	err := h.pipeline.Run(context.Background(), frames)
	if !errors.Is(err, colorconv.ErrInvalidGeometry) {
		t.Errorf("Run() error = %v, want ErrInvalidGeometry", err)
	}
}
