package worker

// 内部打印接口返回的 JSON 结构。字段与 API 侧的输出保持一致，
// worker 只解码自己渲染需要的部分。
type printPayload struct {
	Resume   printResume   `json:"resume"`
	Template printTemplate `json:"template"`
	Warnings []printWarning `json:"warnings"`
}

type printResume struct {
	ID              uint              `json:"id"`
	Title           string            `json:"title"`
	PhotoURL        string            `json:"photoUrl"`
	AccentColor     string            `json:"accentColor"`
	BorderStyle     string            `json:"borderStyle"`
	Summary         string            `json:"summary"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	JobTitle        string            `json:"jobTitle"`
	City            string            `json:"city"`
	Country         string            `json:"country"`
	Phone           string            `json:"phone"`
	Email           string            `json:"email"`
	Skills          []string          `json:"skills"`
	WorkExperiences []printExperience `json:"workExperiences"`
	Educations      []printEducation  `json:"educations"`
}

type printExperience struct {
	Position    string `json:"position"`
	Company     string `json:"company"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Description string `json:"description"`
}

type printEducation struct {
	Degree    string `json:"degree"`
	School    string `json:"school"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type printTemplate struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Layout string     `json:"layout"`
	Style  printStyle `json:"style"`
}

type printStyle struct {
	FontFamily   string `json:"fontFamily"`
	HeadingColor string `json:"headingColor"`
	AccentColor  string `json:"accentColor"`
	Spacing      string `json:"spacing"`
}

type printWarning struct {
	Code        int      `json:"code"`
	Message     string   `json:"message"`
	MissingKeys []string `json:"missing_keys"`
}
