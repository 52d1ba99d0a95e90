package accounts

// DefaultAccounts is the subset of the Romanian general chart of accounts
// (OMFP 1802/2014) the core ships with. A chart file can extend it.
func DefaultAccounts() []Account {
	return []Account{
		{Code: "101", Name: "Capital", Function: FunctionPassive},
		{Code: "1012", Name: "Capital subscris vărsat", Function: FunctionPassive},
		{Code: "117", Name: "Rezultatul reportat", Function: FunctionBifunction},
		{Code: "121", Name: "Profit sau pierdere", Function: FunctionBifunction},
		{Code: "212", Name: "Construcții", Function: FunctionActive},
		{Code: "2131", Name: "Echipamente tehnologice", Function: FunctionActive},
		{Code: "2813", Name: "Amortizarea instalațiilor și mijloacelor de transport", Function: FunctionPassive},
		{Code: "301", Name: "Materii prime", Function: FunctionActive},
		{Code: "371", Name: "Mărfuri", Function: FunctionActive},
		{Code: "401", Name: "Furnizori", Function: FunctionPassive},
		{Code: "404", Name: "Furnizori de imobilizări", Function: FunctionPassive},
		{Code: "408", Name: "Furnizori - facturi nesosite", Function: FunctionPassive},
		{Code: "411", Name: "Clienți", Function: FunctionActive},
		{Code: "4111", Name: "Clienți", Function: FunctionActive},
		{Code: "418", Name: "Clienți - facturi de întocmit", Function: FunctionActive},
		{Code: "421", Name: "Personal - salarii datorate", Function: FunctionPassive},
		{Code: "431", Name: "Asigurări sociale", Function: FunctionPassive},
		{Code: "4311", Name: "Contribuția unității la asigurările sociale", Function: FunctionPassive},
		{Code: "436", Name: "Contribuția asiguratorie pentru muncă", Function: FunctionPassive},
		{Code: "441", Name: "Impozitul pe profit", Function: FunctionPassive},
		{Code: "4423", Name: "TVA de plată", Function: FunctionPassive},
		{Code: "4424", Name: "TVA de recuperat", Function: FunctionActive},
		{Code: "4426", Name: "TVA deductibilă", Function: FunctionActive},
		{Code: "4427", Name: "TVA colectată", Function: FunctionPassive},
		{Code: "4428", Name: "TVA neexigibilă", Function: FunctionBifunction},
		{Code: "461", Name: "Debitori diverși", Function: FunctionActive},
		{Code: "462", Name: "Creditori diverși", Function: FunctionPassive},
		{Code: "471", Name: "Cheltuieli înregistrate în avans", Function: FunctionActive},
		{Code: "472", Name: "Venituri înregistrate în avans", Function: FunctionPassive},
		{Code: "473", Name: "Decontări din operațiuni în curs de clarificare", Function: FunctionBifunction},
		{Code: "512", Name: "Conturi curente la bănci", Function: FunctionActive},
		{Code: "5121", Name: "Conturi la bănci în lei", Function: FunctionActive},
		{Code: "5124", Name: "Conturi la bănci în valută", Function: FunctionActive},
		{Code: "531", Name: "Casa", Function: FunctionActive},
		{Code: "5311", Name: "Casa în lei", Function: FunctionActive},
		{Code: "581", Name: "Viramente interne", Function: FunctionBifunction},
		{Code: "601", Name: "Cheltuieli cu materiile prime", Function: FunctionActive},
		{Code: "607", Name: "Cheltuieli privind mărfurile", Function: FunctionActive},
		{Code: "626", Name: "Cheltuieli poștale și taxe de telecomunicații", Function: FunctionActive},
		{Code: "628", Name: "Alte cheltuieli cu serviciile executate de terți", Function: FunctionActive},
		{Code: "641", Name: "Cheltuieli cu salariile personalului", Function: FunctionActive},
		{Code: "665", Name: "Cheltuieli din diferențe de curs valutar", Function: FunctionActive},
		{Code: "701", Name: "Venituri din vânzarea produselor finite", Function: FunctionPassive},
		{Code: "704", Name: "Venituri din servicii prestate", Function: FunctionPassive},
		{Code: "707", Name: "Venituri din vânzarea mărfurilor", Function: FunctionPassive},
		{Code: "765", Name: "Venituri din diferențe de curs valutar", Function: FunctionPassive},
		{Code: "8033", Name: "Valori materiale primite în păstrare sau custodie", Function: FunctionOffBalance},
		{Code: "901", Name: "Decontări interne privind cheltuielile", Function: FunctionBifunction},
	}
}

// NewDefaultChart returns a StaticChart loaded with DefaultAccounts.
func NewDefaultChart() *StaticChart {
	c, err := NewStaticChart(DefaultAccounts())
	if err != nil {
		panic(err)
	}
	return c
}
