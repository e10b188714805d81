package retriever

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleDiff = `diff --git a/handlers.go b/handlers.go
index 1111111..2222222 100644
--- a/handlers.go
+++ b/handlers.go
@@ -10,6 +10,7 @@ func handlerB() {
 	doSomething()
-	old()
+	new1()
+	new2()
 	return
 }
diff --git a/removed.go b/removed.go
deleted file mode 100644
index 3333333..0000000
--- a/removed.go
+++ /dev/null
@@ -1,3 +0,0 @@
-package removed
`

func TestParseUnifiedDiff_ExtractsFilesAndAddedLines(t *testing.T) {
	files := parseUnifiedDiff(sampleDiff)
	assert.Len(t, files, 1, "deleted file must be skipped")
	assert.Equal(t, "handlers.go", files[0].path)
	assert.Contains(t, files[0].addedLines, 11)
	assert.Contains(t, files[0].addedLines, 12)
	assert.NotContains(t, files[0].addedLines, 10)
}

func TestChangedPaths(t *testing.T) {
	paths := changedPaths(sampleDiff)
	assert.Equal(t, []string{"handlers.go"}, paths)
}
