package wsftp

import (
	"bytes"
	"io"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// netPipe provides a pair of io.ReadWriteClosers connected to each other.
// The function is identical to os.Pipe with the exception that netPipe
// provides the Read/Close guarantees that os.File derived pipes do not.
func netPipe(t testing.TB) (io.ReadWriteCloser, io.ReadWriteCloser) {
	type result struct {
		net.Conn
		error
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
		l.Close()
	}()

	c1, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		l.Close()
		t.Fatal(err)
	}

	r := <-ch
	if r.error != nil {
		t.Fatal(r.error)
	}

	return c1, r.Conn
}

// testServerClient starts an in-process sftp server on one end of a pipe
// and connects a Client to the other.
func testServerClient(t *testing.T, opts ...ClientOption) *Client {
	c1, c2 := netPipe(t)

	server, err := sftp.NewServer(c1)
	if err != nil {
		t.Fatal(err)
	}
	go server.Serve()

	client, err := NewClientPipe(c2, c2, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestServerHandshake(t *testing.T) {
	client := testServerClient(t)
	assert.True(t, client.Ready())

	wd, err := client.Getwd()
	require.NoError(t, err)
	assert.NotEmpty(t, wd)
}

func TestServerLstat(t *testing.T) {
	client := testServerClient(t)

	f, err := os.CreateTemp(t.TempDir(), "sftptest-lstat")
	require.NoError(t, err)
	_, err = f.Write([]byte("some content"))
	require.NoError(t, err)
	f.Close()

	want, err := os.Lstat(f.Name())
	require.NoError(t, err)

	got, err := client.Lstat(f.Name())
	require.NoError(t, err)
	assert.Equal(t, uint64(want.Size()), got.Size)
	assert.True(t, got.IsRegular())
}

func TestServerLstatMissing(t *testing.T) {
	client := testServerClient(t)

	_, err := client.Lstat(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.True(t, os.IsNotExist(err))
}

func TestServerWriteRead(t *testing.T) {
	client := testServerClient(t)
	pathN := filepath.Join(t.TempDir(), "data")

	want := make([]byte, 100*1024)
	_, err := rand.New(rand.NewSource(1)).Read(want)
	require.NoError(t, err)

	f, err := client.Create(pathN)
	require.NoError(t, err)
	nwrote, err := f.Write(want)
	require.NoError(t, err)
	assert.Equal(t, len(want), nwrote)
	require.NoError(t, f.Close())

	f, err = client.OpenRead(pathN)
	require.NoError(t, err)
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.True(t, bytes.Equal(want, got))
}

func TestServerSeek(t *testing.T) {
	client := testServerClient(t)
	pathN := filepath.Join(t.TempDir(), "seek")
	require.NoError(t, os.WriteFile(pathN, []byte("0123456789"), 0o644))

	f, err := client.OpenRead(pathN)
	require.NoError(t, err)
	defer f.Close()

	off, err := f.Seek(-4, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(6), off)

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(got))
}

func TestServerMkdirReadDir(t *testing.T) {
	client := testServerClient(t)
	dir := t.TempDir()

	require.NoError(t, client.Mkdir(filepath.Join(dir, "sub")))
	require.NoError(t,
		os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644))

	entries, err := client.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := []string{entries[0].BaseName(), entries[1].BaseName()}
	assert.Contains(t, names, "sub")
	assert.Contains(t, names, "file")

	for _, entry := range entries {
		if "sub" == entry.BaseName() {
			assert.True(t, entry.IsDir())
		} else {
			assert.True(t, entry.IsRegular())
		}
	}

	require.NoError(t, client.RemoveDirectory(filepath.Join(dir, "sub")))
	_, err = client.Lstat(filepath.Join(dir, "sub"))
	assert.True(t, os.IsNotExist(err))
}

func TestServerRename(t *testing.T) {
	client := testServerClient(t)
	dir := t.TempDir()
	oldN := filepath.Join(dir, "old")
	newN := filepath.Join(dir, "new")
	require.NoError(t, os.WriteFile(oldN, []byte("x"), 0o644))

	require.NoError(t, client.Rename(oldN, newN, 0))

	_, err := client.Lstat(newN)
	require.NoError(t, err)
	_, err = client.Lstat(oldN)
	assert.True(t, os.IsNotExist(err))
}

func TestServerRenameOverwrite(t *testing.T) {
	client := testServerClient(t)
	if !client.HasFeature(FeaturePosixRename) {
		t.Skip("server does not advertise posix-rename@openssh.com")
	}

	dir := t.TempDir()
	oldN := filepath.Join(dir, "old")
	newN := filepath.Join(dir, "new")
	require.NoError(t, os.WriteFile(oldN, []byte("fresh"), 0o644))
	require.NoError(t, os.WriteFile(newN, []byte("stale"), 0o644))

	require.NoError(t, client.Rename(oldN, newN, RenameOverwrite))

	got, err := os.ReadFile(newN)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(got))
}

func TestServerSymlinkReadLink(t *testing.T) {
	client := testServerClient(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	require.NoError(t, client.Symlink(target, link))

	got, err := client.ReadLink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)
}

func TestServerRemove(t *testing.T) {
	client := testServerClient(t)
	pathN := filepath.Join(t.TempDir(), "doomed")
	require.NoError(t, os.WriteFile(pathN, []byte("x"), 0o644))

	require.NoError(t, client.Remove(pathN))
	_, err := os.Lstat(pathN)
	assert.True(t, os.IsNotExist(err))
}

func TestServerStatVFS(t *testing.T) {
	client := testServerClient(t)
	if _, have := client.HasExtension(extStatvfs); !have {
		t.Skip("server does not advertise statvfs@openssh.com")
	}

	vfs, err := client.StatVFS(t.TempDir())
	if err != nil {
		t.Skipf("statvfs not supported by server: %v", err)
	}
	assert.NotZero(t, vfs.Bsize)
	assert.NotZero(t, vfs.TotalSpace())
}
