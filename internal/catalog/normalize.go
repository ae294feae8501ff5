package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"imagearchive/internal/config"
	"imagearchive/internal/identity"
	"imagearchive/internal/logging"
	"imagearchive/internal/tagfile"
)

// Options tunes a Normalizer.
type Options struct {
	// Parallelism bounds how many subtrees are walked at once. Values below 2
	// walk sequentially.
	Parallelism int
	// IgnoreFile names a gitignore-style file read from the root directory.
	// Empty disables ignore rules; dotfiles are always skipped.
	IgnoreFile string
	// TagExtensions lists the lower-case extensions treated as tag files.
	TagExtensions []string
	// SkipTagFiles leaves tag files out of the tree's leaves.
	SkipTagFiles bool
}

// OptionsFromConfig maps the [catalog] config section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Parallelism: 1, TagExtensions: config.DefaultTagExtensions}
	}
	return Options{
		Parallelism:   cfg.Catalog.Parallelism,
		IgnoreFile:    cfg.Catalog.IgnoreFile,
		TagExtensions: cfg.Catalog.TagExtensions,
		SkipTagFiles:  cfg.Catalog.SkipTagFiles,
	}
}

// Normalizer builds catalog trees.
type Normalizer struct {
	assigner identity.Assigner
	opts     Options
	logger   *slog.Logger
}

// NewNormalizer returns a Normalizer that obtains image identifiers from
// assigner. A nil assigner leaves every uuid empty.
func NewNormalizer(assigner identity.Assigner, opts Options, logger *slog.Logger) *Normalizer {
	if len(opts.TagExtensions) == 0 {
		opts.TagExtensions = config.DefaultTagExtensions
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Normalizer{
		assigner: assigner,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "catalog"),
	}
}

// walk holds the state of one Normalize call.
type walk struct {
	*Normalizer
	root     string
	force    bool
	ignore   *gitignore.GitIgnore
	sem      *semaphore.Weighted
	warnings atomic.Int64
}

// Normalize builds the tree rooted at root. When force is set every image is
// given a freshly minted identifier.
func (n *Normalizer) Normalize(ctx context.Context, root string, force bool) (Node, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", root, err)
	}

	w := &walk{Normalizer: n, root: root, force: force}
	if info.IsDir() {
		w.ignore, err = n.loadIgnore(root)
		if err != nil {
			return nil, err
		}
	}
	if n.opts.Parallelism > 1 {
		// The calling goroutine is one of the workers.
		w.sem = semaphore.NewWeighted(int64(n.opts.Parallelism - 1))
	}

	node, err := w.normalize(ctx, root, info.IsDir())
	if err != nil {
		return nil, err
	}
	stats := Count(node)
	logging.WithContext(ctx, n.logger).Info("catalog normalized",
		logging.String(logging.FieldRoot, root),
		logging.Int("directories", stats.Directories),
		logging.Int("files", stats.Files),
		logging.Int("images", stats.Images),
		logging.Int64("warnings", w.warnings.Load()),
	)
	return node, nil
}

func (n *Normalizer) loadIgnore(root string) (*gitignore.GitIgnore, error) {
	name := strings.TrimSpace(n.opts.IgnoreFile)
	if name == "" {
		return nil, nil
	}
	path := filepath.Join(root, name)
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ignore file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := scanner.Text(); strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	n.logger.Debug("loaded ignore rules", logging.String(logging.FieldPath, path), logging.Int("rules", len(lines)))
	return gitignore.CompileIgnoreLines(lines...), nil
}

func (w *walk) normalize(ctx context.Context, path string, isDir bool) (Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isDir {
		return w.directory(ctx, path)
	}
	return w.file(ctx, path)
}

type entry struct {
	path  string
	isDir bool
	isTag bool
}

func (w *walk) directory(ctx context.Context, path string) (Node, error) {
	entries, err := w.list(path)
	if err != nil {
		return nil, err
	}

	dir := &Directory{Path: path, Metadata: Metadata{}}
	for _, e := range entries {
		if !e.isTag {
			continue
		}
		if err := w.pool(ctx, dir.Metadata, e.path); err != nil {
			return nil, err
		}
	}

	children := make([]*entry, 0, len(entries))
	for i := range entries {
		if entries[i].isTag && w.opts.SkipTagFiles {
			continue
		}
		children = append(children, &entries[i])
	}

	dir.Children = make([]Node, len(children))
	g, gctx := errgroup.WithContext(ctx)
	for i, child := range children {
		if w.sem != nil && w.sem.TryAcquire(1) {
			g.Go(func() error {
				defer w.sem.Release(1)
				node, err := w.normalize(gctx, child.path, child.isDir)
				dir.Children[i] = node
				return err
			})
			continue
		}
		node, err := w.normalize(gctx, child.path, child.isDir)
		if err != nil {
			// A failed goroutine cancels gctx; report its error, not the
			// cancellation it caused here.
			if werr := g.Wait(); werr != nil && isContextErr(err) {
				return nil, werr
			}
			return nil, err
		}
		dir.Children[i] = node
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return dir, nil
}

// list returns the visible entries of path ordered by name.
func (w *walk) list(path string) ([]entry, error) {
	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		full := filepath.Join(path, name)
		info, err := os.Stat(full)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", full, err)
		}
		if w.ignored(full, info.IsDir()) {
			continue
		}
		entries = append(entries, entry{
			path:  full,
			isDir: info.IsDir(),
			isTag: !info.IsDir() && tagfile.HasExtension(name, w.opts.TagExtensions),
		})
	}
	return entries, nil
}

func (w *walk) ignored(path string, isDir bool) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if w.ignore.MatchesPath(rel) {
		return true
	}
	return isDir && w.ignore.MatchesPath(rel+"/")
}

// pool merges the pairs of one tag file into metadata. Content problems are
// logged and contribute what could be read; failing to open or read the file
// is returned.
func (w *walk) pool(ctx context.Context, metadata Metadata, path string) error {
	pairs, err := tagfile.Parse(path)
	var perr *tagfile.ParseError
	switch {
	case err == nil:
	case errors.Is(err, tagfile.ErrUndetectedDialect):
		w.warn(ctx, "tag file skipped", "tag_file_undetected_dialect",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "use comma or tab separated key,value rows"),
			logging.String(logging.FieldImpact, "tag file contributes no metadata"),
		)
		return nil
	case errors.As(err, &perr):
		w.warn(ctx, "tag file partially parsed", "tag_file_parse_error",
			logging.String(logging.FieldPath, path),
			logging.Int("line", perr.Line),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix quoting on the reported line"),
			logging.String(logging.FieldImpact, "rows after the malformed line are ignored"),
		)
	default:
		return fmt.Errorf("read tag file %s: %w", path, err)
	}

	if _, ok := pairs[ReservedKey]; ok {
		delete(pairs, ReservedKey)
		w.warn(ctx, "reserved tag key dropped", "reserved_tag_key",
			logging.String(logging.FieldPath, path),
			logging.String("key", ReservedKey),
			logging.String(logging.FieldErrorHint, "rename the key in the tag file"),
			logging.String(logging.FieldImpact, "key is not inherited"),
		)
	}
	for key, value := range pairs {
		metadata[key] = value
	}
	return nil
}

func (w *walk) file(ctx context.Context, path string) (Node, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("detect media type %s: %w", path, err)
	}
	leaf := &File{Path: path, MediaType: baseMediaType(mtype.String())}
	if !leaf.IsImage() || w.assigner == nil {
		return leaf, nil
	}

	id, err := w.assigner.Assign(ctx, path, w.force)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		w.warn(ctx, "identifier assignment failed", "identifier_assignment_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run imagearchive check to verify the identity backend"),
			logging.String(logging.FieldImpact, "record is written without a uuid"),
		)
		return leaf, nil
	}
	leaf.UUID = id
	return leaf, nil
}

func (w *walk) warn(ctx context.Context, msg, eventType string, attrs ...logging.Attr) {
	w.warnings.Add(1)
	logging.WarnWithContext(ctx, w.logger, msg, eventType, attrs...)
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// baseMediaType strips parameters such as "; charset=utf-8".
func baseMediaType(value string) string {
	if idx := strings.IndexByte(value, ';'); idx >= 0 {
		value = value[:idx]
	}
	return strings.TrimSpace(value)
}
