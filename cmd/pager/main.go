// Command pager is a debugging collaborator for the extendible hash index:
// a line-oriented REPL that inserts and deletes keys in a
// HashTable[int32,int32] backed by a file-resident buffer pool, and reports
// the index's header page ID and integrity check result. It does not list
// keys or the directory/bucket layout. It mirrors
// the printer tool's command surface (i, d, p, g, f, c, q, ?), adapted from
// a B+ tree key/value printer to a hash index.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mnohosten/bustubcore/pkg/index"
	"github.com/mnohosten/bustubcore/pkg/storage"
)

const usageMessage = `Enter any of the following commands after the prompt > :
	i <k>  -- Insert <k> (int32) as both key and value.
	f <filename>  -- insert multiple keys from reading file.
	c <filename>  -- delete multiple keys from reading file.
	d <k>  -- Delete key <k> and its associated value.
	g <filename>  -- Write the header page ID and integrity check result to a file.
	p -- Print the header page ID and integrity check result.
	q -- Quit. (Or use Ctrl-D.)
	? -- Print this help message.

`

const (
	numFrames         = 64
	replacerK         = 2
	headerMaxDepth    = 9
	directoryMaxDepth = 9
	bucketMaxSize     = 0 // derive from page size
)

type pager struct {
	bpm *storage.BufferPoolManager
	tbl *index.HashTable[int32, int32]
	out io.Writer
}

func newPager(dbFile string) (*pager, error) {
	dm, err := storage.NewFileDiskManager(dbFile)
	if err != nil {
		return nil, fmt.Errorf("open disk manager: %w", err)
	}
	bpm := storage.NewBufferPoolManager(numFrames, replacerK, dm)

	eq := func(a, b int32) bool { return a == b }
	tbl, err := index.New[int32, int32]("pager", bpm, eq, index.IdentityHash32, index.Int32Serde(),
		headerMaxDepth, directoryMaxDepth, bucketMaxSize)
	if err != nil {
		bpm.Shutdown()
		return nil, fmt.Errorf("create hash table: %w", err)
	}

	return &pager{bpm: bpm, tbl: tbl, out: os.Stdout}, nil
}

func (p *pager) close() error {
	return p.bpm.Shutdown()
}

func (p *pager) insert(key int32) {
	if !p.tbl.Insert(key, key) {
		fmt.Fprintf(p.out, "insert %d failed (duplicate key or table full)\n", key)
	}
}

func (p *pager) delete(key int32) {
	if !p.tbl.Remove(key) {
		fmt.Fprintf(p.out, "delete %d failed (key not found)\n", key)
	}
}

func (p *pager) print() {
	if err := p.tbl.VerifyIntegrity(); err != nil {
		fmt.Fprintf(p.out, "index integrity check failed: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "header page: %d (integrity OK)\n", p.tbl.GetHeaderPageID())
}

func (p *pager) dumpToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "header page: %d\n", p.tbl.GetHeaderPageID())
	if err := p.tbl.VerifyIntegrity(); err != nil {
		fmt.Fprintf(f, "integrity: FAILED: %v\n", err)
		return nil
	}
	fmt.Fprintln(f, "integrity: OK")
	return nil
}

func (p *pager) insertFromFile(filename string) error {
	keys, err := readKeysFromFile(filename)
	if err != nil {
		return err
	}
	for _, k := range keys {
		p.insert(k)
	}
	return nil
}

func (p *pager) deleteFromFile(filename string) error {
	keys, err := readKeysFromFile(filename)
	if err != nil {
		return err
	}
	for _, k := range keys {
		p.delete(k)
	}
	return nil
}

func readKeysFromFile(filename string) ([]int32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var keys []int32
	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		v, err := strconv.ParseInt(sc.Text(), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", sc.Text(), err)
		}
		keys = append(keys, int32(v))
	}
	return keys, sc.Err()
}

func main() {
	dbFile := "pager.db"
	if len(os.Args) > 1 {
		dbFile = os.Args[1]
	}

	p, err := newPager(dbFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer p.close()

	fmt.Print(usageMessage)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanWords)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		switch scanner.Text() {
		case "i":
			if !scanner.Scan() {
				break
			}
			v, err := strconv.ParseInt(scanner.Text(), 10, 32)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad key: %v\n", err)
				continue
			}
			p.insert(int32(v))
		case "d":
			if !scanner.Scan() {
				break
			}
			v, err := strconv.ParseInt(scanner.Text(), 10, 32)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bad key: %v\n", err)
				continue
			}
			p.delete(int32(v))
		case "f":
			if !scanner.Scan() {
				break
			}
			if err := p.insertFromFile(scanner.Text()); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		case "c":
			if !scanner.Scan() {
				break
			}
			if err := p.deleteFromFile(scanner.Text()); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		case "g":
			if !scanner.Scan() {
				break
			}
			if err := p.dumpToFile(scanner.Text()); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
			}
		case "p":
			p.print()
		case "q":
			return
		case "?":
			fmt.Print(usageMessage)
		default:
			fmt.Print(usageMessage)
		}
	}
}
