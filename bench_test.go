package hashbrown

import (
	"fmt"
	"io"
	"strconv"
	"testing"
	"unsafe"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapIter))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapIter))
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetHit))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapGetHit))
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapGetMiss))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapGetMiss))
}

func BenchmarkMapPutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutGrow))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapPutGrow))
}

func BenchmarkMapPutPreAllocate(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutPreAllocate))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapPutPreAllocate))
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", benchSizes(benchmarkRuntimeMapPutDelete))
	b.Run("impl=typedMap", benchSizes(benchmarkTypedMapPutDelete))
}

func benchSizes(f func(b *testing.B, n int)) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n) })
		}
	}
}

func genInt64Keys(start, end int) []int64 {
	keys := make([]int64, end-start)
	for i := range keys {
		keys[i] = int64(start + i)
	}
	return keys
}

func newBenchTable(b *testing.B, capacity int) Typed[int64, int64] {
	b.Helper()
	tbl, err := NewTable(capacity, int64Layout, ByteEntrySpec{KeySize: 8, ValSize: 8}, nil)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(tbl.Close)
	return View[int64, int64](tbl)
}

func benchmarkRuntimeMapIter(b *testing.B, n int) {
	m := make(map[int64]int64, n)
	for _, k := range genInt64Keys(0, n) {
		m[k] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += k + v
		}
	}
	cs.Stop()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkTypedMapIter(b *testing.B, n int) {
	m := newBenchTable(b, n)
	for _, k := range genInt64Keys(0, n) {
		k := k
		if err := m.Insert(&k, &k); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		for j, p, ok := m.t.Next(0); ok; j, p, ok = m.t.Next(j + 1) {
			tmp += *(*int64)(p) + *(*int64)(unsafe.Add(p, 8))
		}
	}
	cs.Stop()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkRuntimeMapGetHit(b *testing.B, n int) {
	m := make(map[int64]int64, n)
	keys := genInt64Keys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[keys[i%n]]
	}
	cs.Stop()
}

func benchmarkTypedMapGetHit(b *testing.B, n int) {
	m := newBenchTable(b, n)
	keys := genInt64Keys(0, n)
	for j := range keys {
		if err := m.Insert(&keys[j], &keys[j]); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var v *int64
	for i := 0; i < b.N; i++ {
		v = m.Get(&keys[i%n])
	}
	cs.Stop()
	fmt.Fprint(io.Discard, v != nil)
}

func benchmarkRuntimeMapGetMiss(b *testing.B, n int) {
	m := make(map[int64]int64)
	keys := genInt64Keys(0, n)
	miss := genInt64Keys(-n, 0)
	for _, k := range keys {
		m[k] = k
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%n]]
	}
	cs.Stop()
}

func benchmarkTypedMapGetMiss(b *testing.B, n int) {
	m := newBenchTable(b, 0)
	keys := genInt64Keys(0, n)
	miss := genInt64Keys(-n, 0)
	for j := range keys {
		if err := m.Insert(&keys[j], &keys[j]); err != nil {
			b.Fatal(err)
		}
	}
	cs := perfbench.Open(b)
	b.ResetTimer()
	var v *int64
	for i := 0; i < b.N; i++ {
		v = m.Get(&miss[i%n])
	}
	cs.Stop()
	fmt.Fprint(io.Discard, v != nil)
}

func benchmarkRuntimeMapPutGrow(b *testing.B, n int) {
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[int64]int64)
		for _, k := range keys {
			m[k] = k
		}
	}
	cs.Stop()
}

func benchmarkTypedMapPutGrow(b *testing.B, n int) {
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl, err := NewTable(0, int64Layout, ByteEntrySpec{KeySize: 8, ValSize: 8}, nil)
		if err != nil {
			b.Fatal(err)
		}
		m := View[int64, int64](tbl)
		for j := range keys {
			if err := m.Insert(&keys[j], &keys[j]); err != nil {
				b.Fatal(err)
			}
		}
		tbl.Close()
	}
	cs.Stop()
}

func benchmarkRuntimeMapPutPreAllocate(b *testing.B, n int) {
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[int64]int64, n)
		for _, k := range keys {
			m[k] = k
		}
	}
	cs.Stop()
}

func benchmarkTypedMapPutPreAllocate(b *testing.B, n int) {
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl, err := NewTable(n, int64Layout, ByteEntrySpec{KeySize: 8, ValSize: 8}, nil)
		if err != nil {
			b.Fatal(err)
		}
		m := View[int64, int64](tbl)
		for j := range keys {
			if err := m.Insert(&keys[j], &keys[j]); err != nil {
				b.Fatal(err)
			}
		}
		tbl.Close()
	}
	cs.Stop()
}

func benchmarkRuntimeMapPutDelete(b *testing.B, n int) {
	m := make(map[int64]int64, n)
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, k := range keys {
			m[k] = k
		}
		for _, k := range keys {
			delete(m, k)
		}
	}
	cs.Stop()
}

func benchmarkTypedMapPutDelete(b *testing.B, n int) {
	m := newBenchTable(b, n)
	keys := genInt64Keys(0, n)
	cs := perfbench.Open(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range keys {
			if err := m.Insert(&keys[j], &keys[j]); err != nil {
				b.Fatal(err)
			}
		}
		for j := range keys {
			m.Delete(&keys[j])
		}
	}
	cs.Stop()
}
