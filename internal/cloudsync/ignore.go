package cloudsync

import (
	gitignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnoreLines are excluded from local scanning regardless of a
// workspace's own .diaryxignore. Grounded
// on internal/client/sync3/sync_ignore.go's defaultIgnoreLines, trimmed to
// this domain (a markdown knowledge base has no venvs or notebooks) and
// extended with the hidden state directory spec §6 reserves for CRDT
// storage and the manifest itself.
var defaultIgnoreLines = []string{
	".diaryx/",
	".diaryxignore",
	"**/*.conflict.*",
	".DS_Store",
	"Thumbs.db",
	"*.tmp",
	"*.swp",
}

// IgnoreList filters paths out of local-change detection. The remote
// listing is not filtered by it. Grounded on SyncIgnoreList's
// gitignore-pattern-matching approach.
type IgnoreList struct {
	ignore *gitignore.GitIgnore
}

// NewIgnoreList compiles defaultIgnoreLines plus any workspace-supplied
// extra patterns (typically the contents of a .diaryxignore file).
func NewIgnoreList(extra ...string) *IgnoreList {
	lines := append(append([]string{}, defaultIgnoreLines...), extra...)
	return &IgnoreList{ignore: gitignore.CompileIgnoreLines(lines...)}
}

func (l *IgnoreList) ShouldIgnore(path string) bool {
	return l.ignore.MatchesPath(path)
}
