package tokenizer

import (
	"strings"
	"testing"
)

var benchTexts = map[string]string{
	"short": "Reset your VPN password from the self-service portal",
	"medium": `If the office printer shows as offline, open Settings and remove it.
        Add it again by IP address and install the driver offered by the vendor.
        Printers on the guest wireless network are not reachable from laptops.`,
	"long": strings.Repeat(`Backups run nightly for every managed laptop. Restores are
        requested through the help desk and take up to two business days. Files
        deleted more than thirty days ago cannot be recovered. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range benchTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := benchTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Tokenize(text)
		}
	})
}

func BenchmarkNormalize(b *testing.B) {
	words := []string{"printers", "connecting", "passwords", "installed", "wireless", "quickly"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Normalize(words[i%len(words)])
	}
}
