package audio

import (
	"context"
	"io"
	"log"
	"math"
	"testing"

	"github.com/sapf-lang/sapf/pkg/cursor"
	"github.com/sapf-lang/sapf/pkg/slist"
	"github.com/sapf-lang/sapf/pkg/value"
)

type fakeThread struct{ sr value.Z }

func (fakeThread) Push(v value.V) error  { return nil }
func (fakeThread) Pop() (value.V, error) { return value.V{}, nil }
func (t fakeThread) SampleRate() value.Z { return t.sr }

// sineGen is a synthetic finite generator standing in for the DSP library
// that would ordinarily produce an audio-rate sinusoid; that library is out
// of scope here, so this only needs to yield the right number of samples
// and then terminate, the way any finite audio-rate source would.
type sineGen struct {
	freq, sr  value.Z
	phase     value.Z
	remaining int
	blockSize int
	list      *slist.List
}

func (g *sineGen) SetList(l *slist.List) { g.list = l }
func (g *sineGen) Done() bool            { return false }
func (g *sineGen) Finite() bool          { return true }

func (g *sineGen) Pull(th value.Thread) error {
	n := g.blockSize
	if n > g.remaining {
		n = g.remaining
	}
	block := make([]value.Z, n)
	inc := 2 * math.Pi * g.freq / g.sr
	for i := 0; i < n; i++ {
		block[i] = math.Sin(g.phase)
		g.phase += inc
	}
	g.remaining -= n
	var cont *slist.List
	if g.remaining > 0 {
		cont = slist.FromGen(slist.ElemZ, &sineGen{freq: g.freq, sr: g.sr, phase: g.phase, remaining: g.remaining, blockSize: g.blockSize})
	}
	g.list.FillZ(block, cont)
	return nil
}

func TestDriverDeliversExactFrameCountThenRemovesPlayer(t *testing.T) {
	const sampleRate = value.Z(48000)
	const totalFrames = 24000 // 0.5s at 48kHz
	const blockSize = 512

	th := fakeThread{sr: sampleRate}
	logger := log.New(io.Discard, "", 0)
	driver := NewDriver(logger)

	gen := &sineGen{freq: 440, sr: sampleRate, remaining: totalFrames, blockSize: blockSize}
	list := slist.FromGen(slist.ElemZ, gen)
	player := NewPlayer(th, []cursor.ZIn{cursor.ListZIn(list)})
	driver.Play(player)

	buf := make([][]value.Z, 1)
	buf[0] = make([]value.Z, blockSize)

	produced := 0
	maxCallbacks := totalFrames/blockSize + 5
	callbacks := 0
	for {
		callbacks++
		if callbacks > maxCallbacks {
			t.Fatal("driver never finished the player; possible infinite loop")
		}
		stillRegistered := len(driver.players) > 0
		driver.Render(buf, blockSize)

		want := blockSize
		if remaining := totalFrames - produced; remaining < want {
			want = remaining
		}
		if want > 0 {
			produced += want
		}

		if stillRegistered && len(driver.players) == 0 {
			break
		}
	}

	if produced != totalFrames {
		t.Fatalf("driver delivered %d frames, want exactly %d", produced, totalFrames)
	}
	if len(driver.players) != 0 {
		t.Fatal("player was not removed once its channel finished")
	}
}

func TestStopAllRunsFinalizersConcurrently(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	driver := NewDriver(logger)

	th := fakeThread{sr: 48000}
	flushed := make(chan int, 2)
	for i := 0; i < 2; i++ {
		i := i
		l := slist.FromArrayZ([]value.Z{0, 0})
		p := NewPlayer(th, []cursor.ZIn{cursor.ListZIn(l)})
		p.Finalize = func() { flushed <- i }
		driver.Play(p)
	}

	if err := driver.StopAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	close(flushed)
	count := 0
	for range flushed {
		count++
	}
	if count != 2 {
		t.Fatalf("expected both players finalized, got %d", count)
	}
	if len(driver.players) != 0 {
		t.Fatal("StopAll must clear the registry")
	}
}
