package classify

import (
	"testing"

	"brainocr/pkg/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		path string
		want types.Classification
	}{
		{
			name: "category and source",
			path: "books/atomic-habits/page1.jpg",
			want: types.Classification{Category: "books", Source: "atomic-habits", Title: "Atomic Habits"},
		},
		{
			name: "watch root prefix does not shift classification",
			path: "brain-notes/books/atomic-habits/page1.jpg",
			want: types.Classification{Category: "books", Source: "atomic-habits", Title: "Atomic Habits"},
		},
		{
			name: "absolute path",
			path: "/brain-notes/articles/deep_work/scan.pdf",
			want: types.Classification{Category: "articles", Source: "deep_work", Title: "Deep Work"},
		},
		{
			name: "single directory level",
			path: "books/page1.jpg",
			want: types.Classification{Category: DefaultCategory, Source: "books", Title: "Books"},
		},
		{
			name: "file directly under watch root",
			path: "page1.jpg",
			want: types.Classification{Category: DefaultCategory, Source: DefaultSource, Title: "Unsorted"},
		},
		{
			name: "underscore and hyphen mix",
			path: "books/the_war-of_art/p.png",
			want: types.Classification{Category: "books", Source: "the_war-of_art", Title: "The War Of Art"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.path)
			if got != tt.want {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.path, got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	a := Classify("books/atomic-habits/page1.jpg")
	b := Classify("books/atomic-habits/page1.jpg")
	if a != b {
		t.Errorf("Classify not deterministic: %+v != %+v", a, b)
	}
}

func TestClassifyRel(t *testing.T) {
	got := ClassifyRel("/brain-notes", "/brain-notes/books/atomic-habits/page1.jpg")
	want := types.Classification{Category: "books", Source: "atomic-habits", Title: "Atomic Habits"}
	if got != want {
		t.Errorf("ClassifyRel() = %+v, want %+v", got, want)
	}
}

func TestDocumentID(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "absolute path",
			path: "/brain-notes/books/atomic-habits/page1.jpg",
			want: "brain-notes_books_atomic-habits_page1_jpg",
		},
		{
			name: "spaces and parens folded",
			path: "notes/my scan (2).png",
			want: "notes_my_scan__2__png",
		},
		{
			name: "windows separators",
			path: `notes\books\x.pdf`,
			want: "notes_books_x_pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocumentID(tt.path); got != tt.want {
				t.Errorf("DocumentID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	// Same path must always yield the same id; different paths must not collide trivially.
	if DocumentID("/a/b/c.jpg") != DocumentID("/a/b/c.jpg") {
		t.Error("DocumentID not deterministic")
	}
}
