package contracts

type ContractRow struct {
	ID              string
	Name            string
	ClientName      string
	Code            string
	Status          string
	OpenPallets     int
	MovingPallets   int
	FinishedPallets int
	IsCurrent       bool
}

type PageData struct {
	Filter  string
	IsAdmin bool
	Message string
	Rows    []ContractRow
}
