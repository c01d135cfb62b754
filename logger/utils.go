package logger

import (
	"runtime"
	"strconv"
	"strings"
)

// FileWithLineNum return the file name and line number of the first
// caller outside this module's source tree
func FileWithLineNum() string {
	for i := 2; i < 15; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if strings.HasSuffix(file, "_test.go") ||
			!strings.Contains(file, "godoes/pdo-oracle") {
			return file + ":" + strconv.FormatInt(int64(line), 10)
		}
	}

	return ""
}
