package adminusers

type UserView struct {
	ID              int64  `bun:"id"`
	Username        string `bun:"username"`
	Role            string `bun:"role"`
	ClientContracts string `bun:"client_contracts"`
}

type ContractOption struct {
	ID    string
	Label string
}

type PageData struct {
	Users        []UserView
	Contracts    []ContractOption
	Status       string
	ErrorMessage string
}
