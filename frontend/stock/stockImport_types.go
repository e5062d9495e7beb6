package stock

type PageData struct {
	ContractID     string
	ContractName   string
	ClientName     string
	ContractStatus string
	Message        string
	Records        []StockRecord
}
