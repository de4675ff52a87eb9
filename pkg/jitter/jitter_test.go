package jitter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationBounds(t *testing.T) {
	base := time.Second

	for i := 0; i < 100; i++ {
		d := Duration(base, 0.5)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}

func TestExponentialBackoff(t *testing.T) {
	base := 5 * time.Second
	max := 5 * time.Minute

	// Нулевая попытка стартует с базы
	d := ExponentialBackoff(base, max, 0, 0)
	assert.Equal(t, base, d)

	// Рост удваивается по попыткам
	assert.Equal(t, 10*time.Second, ExponentialBackoff(base, max, 1, 0))
	assert.Equal(t, 20*time.Second, ExponentialBackoff(base, max, 2, 0))

	// И упирается в потолок
	assert.Equal(t, max, ExponentialBackoff(base, max, 20, 0))

	// Джиттер не пробивает потолок больше чем на коэффициент
	for i := 0; i < 50; i++ {
		d := ExponentialBackoff(base, max, 20, 0.5)
		assert.LessOrEqual(t, d, max+max/2)
		assert.GreaterOrEqual(t, d, max)
	}
}

func TestSleepCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
