package cloudsync

import (
	"context"
	"fmt"
	"sync"
)

// fakeProvider is an in-memory CloudProvider for tests.
type fakeProvider struct {
	mu      sync.Mutex
	id      string
	objects map[string][]byte
	version int
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{id: id, objects: make(map[string][]byte)}
}

func (f *fakeProvider) ID() string { return f.id }

func (f *fakeProvider) seed(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = content
}

func (f *fakeProvider) ListRemote(_ context.Context) ([]RemoteFileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RemoteFileInfo
	for path, content := range f.objects {
		out = append(out, RemoteFileInfo{Path: path, Size: int64(len(content)), ContentHash: hashContent(content)})
	}
	return out, nil
}

func (f *fakeProvider) Upload(_ context.Context, path string, content []byte, modifiedAtMs int64) (RemoteFileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version++
	f.objects[path] = content
	return RemoteFileInfo{
		Path: path, Size: int64(len(content)), ModifiedAtMs: modifiedAtMs,
		Version: fmt.Sprintf("v%d", f.version), ContentHash: hashContent(content),
	}, nil
}

func (f *fakeProvider) Download(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("fakeProvider: no object at %q", path)
	}
	return content, nil
}

func (f *fakeProvider) DeleteRemote(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	return nil
}
