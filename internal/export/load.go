package export

import (
	"context"

	"github.com/mabel-stories/mabel/internal/store"
)

// LoadBook assembles the latest chapter of every approved module of a
// project into a Book.
func LoadBook(ctx context.Context, st *store.Store, projectID string) (Book, error) {
	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		return Book{}, err
	}
	rows, err := st.BookChapters(ctx, projectID)
	if err != nil {
		return Book{}, err
	}
	interviewee, err := st.GetInterviewee(ctx, projectID)
	if err != nil {
		return Book{}, err
	}

	book := Book{Title: project.Title}
	if interviewee != nil {
		book.Subtitle = "The life story of " + interviewee.Name
	}
	for _, r := range rows {
		book.Chapters = append(book.Chapters, Chapter{
			Number:  r.ModuleNumber,
			Title:   r.Title,
			Content: r.Content,
		})
	}
	return book, nil
}
