package report

type Report struct {
	Title    string
	Header   []string
	Rows     [][]string
	Footnote string
}

func (r Report) IsEmpty() bool {
	return len(r.Rows) == 0
}
