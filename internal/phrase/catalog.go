package phrase

// Category names of the built-in catalog.
const (
	CategoryConnectors = "connectors"
	CategoryVerbose    = "verbose"
	CategoryCalques    = "calques"
	CategoryLegal      = "legal"
	CategoryMarketing  = "marketing"
)

// Builtin returns the shipped catalog. Every call returns fresh slices.
func Builtin() []Category {
	return []Category{
		{
			Name: CategoryConnectors,
			Rules: []Rule{
				{Before: "יש לציין כי", After: []string{"יצוין כי", "נציין כי"}, Comment: "ניסוח ישיר וקצר יותר"},
				{Before: "חשוב לציין כי", After: []string{"יודגש כי"}, Comment: "פתיח שחוק האופייני לטקסט שנוצר במכונה"},
				{Before: "בנוסף לכך", After: []string{"כמו כן", "בנוסף"}, Comment: "צירוף כפול; מילה אחת מספיקה"},
				{Before: "יתרה מזאת", After: []string{"זאת ועוד"}, Comment: "מעבר טבעי יותר בעברית כתובה"},
				{Before: "על מנת", After: []string{"כדי"}, Comment: "מילה אחת במקום שתיים"},
				{Before: "לאור העובדה", After: []string{"מאחר", "הואיל"}, Comment: "צירוף מסורבל"},
				{Before: "במילים אחרות", After: []string{"כלומר"}, Comment: "קיצור"},
				{Before: "בסופו של דבר", After: []string{"לבסוף"}, Comment: "קיצור"},
				{Before: "כתוצאה מכך", After: []string{"לפיכך"}, Comment: "משלב כתוב"},
			},
		},
		{
			Name: CategoryVerbose,
			Rules: []Rule{
				{Before: "באופן משמעותי", After: []string{"במידה ניכרת"}, Comment: "תואר הפועל 'באופן' נשמע מתורגם"},
				{Before: "לבצע בדיקה", After: []string{"לבדוק"}, Comment: "פועל פשוט במקום צירוף שמני"},
				{Before: "לקבל החלטה", After: []string{"להחליט"}, Comment: "פועל פשוט במקום צירוף שמני"},
				{Before: "לתת מענה", After: []string{"להשיב"}, Comment: "פועל פשוט במקום צירוף שמני"},
				{Before: "במהלך תקופה של", After: []string{"במשך"}, Comment: "קיצור"},
				{Before: "בתקופה הקרובה", After: []string{"בקרוב"}, Comment: "קיצור"},
				{Before: "הינו", After: []string{"הוא"}, Comment: "שימוש יתר ב'הינו' מכביד על הטקסט"},
				{Before: "הינה", After: []string{"היא"}, Comment: "שימוש יתר ב'הינה' מכביד על הטקסט"},
				{Before: "הינם", After: []string{"הם"}, Comment: "שימוש יתר ב'הינם' מכביד על הטקסט"},
			},
		},
		{
			Name: CategoryCalques,
			Rules: []Rule{
				{Before: "לעשות שינוי", After: []string{"לשנות"}, Comment: "תרגום מילולי של make a change"},
				{Before: "לקחת החלטה", After: []string{"להחליט"}, Comment: "תרגום מילולי של take a decision"},
				{Before: "זה עושה היגיון", After: []string{"זה הגיוני"}, Comment: "תרגום מילולי של makes sense"},
				{Before: "בסוף היום", After: []string{"לסיכום"}, Comment: "תרגום מילולי של at the end of the day"},
				{Before: "לשחק תפקיד", After: []string{"למלא תפקיד"}, Comment: "תרגום מילולי של play a role"},
				{Before: "על בסיס יומי", After: []string{"מדי יום"}, Comment: "תרגום מילולי של on a daily basis"},
			},
		},
		{
			Name: CategoryLegal,
			Rules: []Rule{
				{Before: "הצדדים מסכימים ביניהם", After: []string{"הצדדים מסכימים"}, Comment: "'ביניהם' מיותר"},
				{Before: "בשום פנים ואופן", After: []string{"בשום אופן"}, Comment: "כפל לשון"},
				{Before: "בהתאם לכך", After: []string{"לפיכך"}, Comment: "משלב משפטי"},
				{Before: "לצורך העניין", After: []string{"לעניין זה"}, Comment: "משלב משפטי"},
				{Before: "מיום החתימה על הסכם זה", After: []string{"ממועד חתימת הסכם זה"}, Comment: "הנוסח המקובל בהסכמים"},
				{Before: "מבלי לגרוע מהאמור", After: []string{"מבלי לגרוע מכלליות האמור"}, Comment: "הנוסח המקובל בהסכמים"},
				{Before: "יפוי כח", After: []string{"ייפוי כוח"}, Comment: "כתיב מלא לפי כללי האקדמיה"},
			},
		},
		{
			Name: CategoryMarketing,
			Rules: []Rule{
				{Before: "פתרון מקיף", After: []string{"מענה מלא"}, Comment: "מליצה שיווקית שחוקה"},
				{Before: "חוויית משתמש חלקה", After: []string{"שימוש נוח"}, Comment: "תרגום מילולי של seamless experience"},
				{Before: "ברמה הגבוהה ביותר", After: []string{"ברמה גבוהה"}, Comment: "הפרזה"},
				{Before: "אנחנו כאן בשבילך", After: []string{"נשמח לעמוד לרשותך"}, Comment: "משלב מקצועי יותר"},
				{Before: "בעולם של היום", After: []string{"כיום"}, Comment: "פתיח שחוק"},
				{Before: "אל תהססו לפנות", After: []string{"מוזמנים לפנות"}, Comment: "תרגום מילולי של don't hesitate"},
			},
		},
	}
}
