package report

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// generateRaws 產生 count 個分散在 20 個應用程式上的任務結果
func generateRaws(count int) []types.RawJob {
	raws := make([]types.RawJob, 0, count)
	for i := 0; i < count; i++ {
		kind := "compile"
		if i%4 == 0 {
			kind = "run_test"
		}
		status := types.NumericStatus(0)
		if i%17 == 0 {
			status = types.NumericStatus(1)
		}
		cmd := fmt.Sprintf("./.murdock %s app%02d board%d:gnu", kind, i%20, i)
		raws = append(raws, raw(cmd, status, fmt.Sprintf("w%d", i%8), float64(i%30)))
	}
	return raws
}

func BenchmarkFromRaw(b *testing.B) {
	raws := generateRaws(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := FromRaw(nil, raws)
		require.Empty(b, r.Conflicts)
	}
}

func BenchmarkGenerate(b *testing.B) {
	r := FromRaw(nil, generateRaws(1000))
	opts := Options{Dir: b.TempDir(), RenderWorkers: 8, Logger: zerolog.Nop()}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		require.NoError(b, Generate(context.Background(), r, opts))
	}
}
