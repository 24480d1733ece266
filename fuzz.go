package rawfile

// Fuzz is a go-fuzz entry point: any input that OpenBytes accepts and
// that doesn't panic while its scans are being read is a valid corpus
// seed.
func Fuzz(data []byte) int {
	f, err := OpenBytes(data, nil)
	if err != nil {
		return 0
	}
	defer f.Close()

	if f.NScans() > 0 {
		_, _ = f.Scan(f.FirstScan())
	}
	return 1
}
