// +build filelog

package build

import "os"

var logf *os.File

// LoggingType is a log type that writes to a file.
const LoggingType = LogTypeFile

// Write writes b to the swapd.log file.
func (w *LogWriter) Write(b []byte) (int, error) {
	return logf.Write(b)
}

func init() {
	var err error
	logf, err = os.Create("swapd.log")
	if err != nil {
		panic(err)
	}
}
