package filter

import (
	"testing"
)

var benchMessage = message(
	"专利代理 <info@sptl.com.cn>",
	"【提醒函】CN 申请号：202310123456.7;贵方编号：ABC-001;我方编号：XYZ-001",
	"关于第一次审查意见通知书，请留意该通知书的答复期限为：2025年09月29日。",
)

// BenchmarkFilter_Allows_NoFilters benchmarks the filter when no filters are active
func BenchmarkFilter_Allows_NoFilters(b *testing.B) {
	f, err := New(Options{})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Allows(benchMessage)
	}
}

// BenchmarkFilter_Allows_WithExcludeFilter benchmarks the filter with exclude patterns
func BenchmarkFilter_Allows_WithExcludeFilter(b *testing.B) {
	f, err := New(Options{
		ExcludeHeader: []string{`From:.*@spam\.com`},
	})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Allows(benchMessage)
	}
}

// BenchmarkFilter_Allows_BodyFilter benchmarks body filtering
func BenchmarkFilter_Allows_BodyFilter(b *testing.B) {
	f, err := New(Options{
		IncludeBody: []string{`答复期限.*\d{4}年`},
	})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Allows(benchMessage)
	}
}
