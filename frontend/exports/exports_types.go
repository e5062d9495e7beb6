package exports

type ContractOption struct {
	ID       string
	Label    string
	Selected bool
}

type PageData struct {
	ContractID     string
	ContractName   string
	ClientName     string
	ContractStatus string
	Contracts      []ContractOption
}
