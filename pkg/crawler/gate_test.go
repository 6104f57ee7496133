package crawler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"igcrawler/pkg/driver/drivertest"
)

func TestGateAdvancesOnExpectedKey(t *testing.T) {
	d := drivertest.New(testSel.Item)
	d.Document.Set(testSel.DetailKey, "href", postKey(1))

	g := NewGate(d, testSel.DetailKey, 10, 0)
	assert.Equal(t, GateIdle, g.State())

	assert.Equal(t, GateAdvanced, g.Check(context.Background(), postKey(1)))
	assert.Equal(t, 1, g.Attempts())
	assert.Equal(t, postKey(1), g.LastKey())

	g.Reset()
	assert.Equal(t, GateIdle, g.State())
	assert.Equal(t, 0, g.Attempts())
	assert.Equal(t, postKey(1), g.LastKey())
}

func TestGateAcceptsRelativeDetailLink(t *testing.T) {
	d := drivertest.New(testSel.Item)
	d.Document.Set(testSel.DetailKey, "href", "/p/post01/")

	g := NewGate(d, testSel.DetailKey, 3, 0)
	assert.Equal(t, GateAdvanced, g.Check(context.Background(), postKey(1)))
}

func TestGateStuckOnOtherItem(t *testing.T) {
	d := drivertest.New(testSel.Item)
	d.Document.Set(testSel.DetailKey, "href", postKey(2))

	g := NewGate(d, testSel.DetailKey, 10, 0)
	// the view differs from everything seen before but is not the wanted item
	assert.Equal(t, GateStuck, g.Check(context.Background(), postKey(3)))
	assert.Equal(t, 10, g.Attempts())
	assert.Equal(t, "stuck", g.State().String())
	assert.Equal(t, postKey(2), g.LastKey())
}

func TestGateWithoutExpectedKeyNeedsChange(t *testing.T) {
	d := drivertest.New(testSel.Item)
	d.Document.Set(testSel.DetailKey, "href", postKey(1))

	g := NewGate(d, testSel.DetailKey, 10, 0)
	assert.Equal(t, GateAdvanced, g.Check(context.Background(), ""))
	g.Reset()

	assert.Equal(t, GateStuck, g.Check(context.Background(), ""))
	assert.Equal(t, 10, g.Attempts())
}

func TestGateStuckWhenKeyMissing(t *testing.T) {
	d := drivertest.New(testSel.Item)
	g := NewGate(d, testSel.DetailKey, 3, 0)

	assert.Equal(t, GateStuck, g.Check(context.Background(), postKey(1)))
	assert.Equal(t, 3, g.Attempts())
	assert.Empty(t, g.LastKey())
}

func TestGateStopsOnCancel(t *testing.T) {
	d := drivertest.New(testSel.Item)
	g := NewGate(d, testSel.DetailKey, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, GateStuck, g.Check(ctx, postKey(1)))
	assert.Equal(t, 1, g.Attempts())
}
