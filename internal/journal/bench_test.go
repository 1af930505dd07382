package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func openSQLiteBench(b *testing.B) *SQL {
	b.Helper()
	j, err := OpenSQL(context.Background(), DriverSQLite, filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatalf("open journal: %v", err)
	}
	b.Cleanup(func() { j.Close() })
	return j
}

func BenchmarkAppend(b *testing.B) {
	for name, j := range map[string]Journal{
		"memory":  NewMemory(),
		"sqlite3": openSQLiteBench(b),
	} {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := j.Append(context.Background(), "BookAdded", testPayload{BookID: int64(i), Note: "bench"}); err != nil {
					b.Fatalf("Append failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkLoad(b *testing.B) {
	j := openSQLiteBench(b)
	for i := 0; i < 100; i++ {
		if _, err := j.Append(context.Background(), "BookAdded", testPayload{BookID: int64(i), Note: fmt.Sprintf("event %d", i)}); err != nil {
			b.Fatalf("failed to setup events for benchmark: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := j.Load(context.Background()); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}
