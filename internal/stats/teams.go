package stats

// Team is an NBA franchise as the box-score site abbreviates it.
type Team struct {
	Code string
	Name string
}

// Teams lists current franchises by site code.
var Teams = []Team{
	{"ATL", "Atlanta Hawks"},
	{"BOS", "Boston Celtics"},
	{"BRK", "Brooklyn Nets"},
	{"CHO", "Charlotte Hornets"},
	{"CHI", "Chicago Bulls"},
	{"CLE", "Cleveland Cavaliers"},
	{"DAL", "Dallas Mavericks"},
	{"DEN", "Denver Nuggets"},
	{"DET", "Detroit Pistons"},
	{"GSW", "Golden State Warriors"},
	{"HOU", "Houston Rockets"},
	{"IND", "Indiana Pacers"},
	{"LAC", "Los Angeles Clippers"},
	{"LAL", "Los Angeles Lakers"},
	{"MEM", "Memphis Grizzlies"},
	{"MIA", "Miami Heat"},
	{"MIL", "Milwaukee Bucks"},
	{"MIN", "Minnesota Timberwolves"},
	{"NOP", "New Orleans Pelicans"},
	{"NYK", "New York Knicks"},
	{"OKC", "Oklahoma City Thunder"},
	{"ORL", "Orlando Magic"},
	{"PHI", "Philadelphia 76ers"},
	{"PHO", "Phoenix Suns"},
	{"POR", "Portland Trail Blazers"},
	{"SAC", "Sacramento Kings"},
	{"SAS", "San Antonio Spurs"},
	{"TOR", "Toronto Raptors"},
	{"UTA", "Utah Jazz"},
	{"WAS", "Washington Wizards"},
}

// TeamName returns the franchise name for code, or code itself.
func TeamName(code string) string {
	for _, t := range Teams {
		if t.Code == code {
			return t.Name
		}
	}
	return code
}
