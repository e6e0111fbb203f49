package validation

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dropDatabas3/gatekeeper/internal/domain/result"
)

//go:embed data/common_passwords.txt
var embeddedLists embed.FS

const embeddedList = "data/common_passwords.txt"

// Dictionary rechaza passwords presentes en una lista de passwords filtrados.
//
// La lista se recorre línea a línea en cada chequeo, nunca se carga entera en
// memoria. Path vacío usa la lista embebida.
type Dictionary struct {
	Path string
}

func (Dictionary) Name() string { return "dictionary" }

func (d Dictionary) open() (io.ReadCloser, error) {
	if d.Path == "" {
		return embeddedLists.Open(embeddedList)
	}
	return os.Open(filepath.Clean(d.Path))
}

func (d Dictionary) Check(ctx context.Context, password string, _ Subject) (result.Result, error) {
	f, err := d.open()
	if err != nil {
		return result.Result{}, fmt.Errorf("dictionary: open: %w", err)
	}
	defer f.Close()

	found, err := containsLine(ctx, f, password)
	if err != nil {
		return result.Result{}, fmt.Errorf("dictionary: scan: %w", err)
	}
	if found {
		return result.Failure(result.PasswordCommon), nil
	}
	return result.Success(nil), nil
}

func containsLine(ctx context.Context, r io.Reader, needle string) (bool, error) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		// chequeo barato de cancelación cada tanto
		if n++; n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return false, err
			}
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == needle {
			return true, nil
		}
	}
	return false, sc.Err()
}
