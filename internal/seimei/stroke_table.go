package seimei

import "fmt"

// strokeGroups lists name characters grouped by the stroke count of their
// traditional form. Simplified forms are not listed here; they take the count
// of their traditional counterpart through traditionalForms.
var strokeGroups = []struct {
	strokes int
	chars   string
}{
	{1, "一乙"},
	{2, "二人入八力十七九乃又了丁刀"},
	{3, "三上下大小山川久土士子女千万丸也巳夕干弓才寸工己口々"},
	{4, "中井今仁元内公太天文日月木水火王友午心手比毛氏介六五允丹之斗方片牛犬不分少尺互夫"},
	{5, "田本由石市代北白加平正古未永玉生司史左右央弘冬矢功世令旦甲申立叶可巧目民四外半布弁母仙"},
	{6, "伊吉安百西光伏江池竹羽朱有糸成早旭充好宇守圭名多匡次此先全仲伍任凪帆汐舟行衣亘亥州地机各向合同如妃寺芝米考色"},
	{7, "佐村谷花赤杉李貝里社坂町住那沖芳杏秀孝希利良伸佑克志忍男玖初吾快杜邦甫見角言究呂君宏岐材汰沙辰冴伶肖芹我兵伯近助步佛"},
	{8, "林松岡金長青東河岸武宗季和幸明昌直知昇奈佳依卓采京尚岳岬朋欣枝果治波英茂若苗雨孟宝定宜房典侑怜拓昊昂旺沼阿迫所周牧服居岩空育芽祈來亞兒"},
	{9, "柳泉畑津荒前南星春秋美彦信保俊恒哉咲香亮映紀音政昭勇宣律海郎奏柚虹研玲珂皆城為要草茜面風飛首重思洋洸洵科祐祝建威姿宥屋柏柴神相則厚"},
	{10, "高宮原島倉家真夏晃朗紘純桃桂唐恭修哲隼泰浦峰根梅栗荻酒庭益翁華莉紗倫剛航晋秦容留起祥師馬釜能時書流旅凌兼宰紋悟晟敏眞"},
	{11, "野菅堀崎笠細菊望清健康崇彩悠啓理章雪梨梓菜萌涼琉陸隆紬紳進基常淳惇貫麻鹿船深盛都部紹唯菱國髙﨑淺"},
	{12, "森渡植朝道湯奥越富賀須葉結陽晴智勝達博喜裕翔琴絵遥敦雄惠敬景暁尋創登巽湊温偉善萩斐貴順琳晶葵運間飯塚稀曾黑"},
	{13, "新福鈴園聖誠愛雅暖楓椿慎照寛詩睦源準靖義瑞蓮稔幹資路楠溝蒲節遠蒼溪圓"},
	{14, "増緑碧歌綾綺颯彰維緒嘉榎鳴熊稲瑠輔銀齊實榮壽嶋與滿"},
	{15, "横窪輝潤慶蔵諒凛摩澄徹範黎廣德數"},
	{16, "橋澤龍樹賢篤憲橘興薫錦衛築親頼穏龜燈靜"},
	{17, "磯濱鍋優謙翼燦環鞠嶺霞齋穗聰彌聲"},
	{18, "藤織鎌瞳観曜雛藍雙豐禮"},
	{19, "瀬鏡蘭麗邊鵬願關瀧"},
	{20, "馨護耀響"},
	{21, "櫻鶴"},
	{22, "鷲"},
	{23, "巖"},
	{24, "鷹鹽"},
}

// traditionalForms maps simplified (shinjitai) characters to the traditional
// form whose stroke count they carry.
var traditionalForms = map[rune]rune{
	'沢': '澤',
	'浜': '濱',
	'辺': '邊',
	'斎': '齋',
	'桜': '櫻',
	'竜': '龍',
	'国': '國',
	'広': '廣',
	'亜': '亞',
	'来': '來',
	'恵': '惠',
	'栄': '榮',
	'実': '實',
	'寿': '壽',
	'関': '關',
	'滝': '瀧',
	'斉': '齊',
	'浅': '淺',
	'曽': '曾',
	'徳': '德',
	'穂': '穗',
	'黒': '黑',
	'歩': '步',
	'渓': '溪',
	'塩': '鹽',
	'亀': '龜',
	'児': '兒',
	'仏': '佛',
	'双': '雙',
	'円': '圓',
	'豊': '豐',
	'聡': '聰',
	'巌': '巖',
	'礼': '禮',
	'弥': '彌',
	'与': '與',
	'灯': '燈',
	'声': '聲',
	'数': '數',
	'静': '靜',
	'満': '滿',
}

// StrokeTable maps a character to its canonical stroke count.
type StrokeTable struct {
	entries map[rune]int
}

// NewStrokeTable builds a table from the supplied entries, rejecting duplicates
// and non-positive counts.
func NewStrokeTable(entries map[rune]int) (*StrokeTable, error) {
	table := &StrokeTable{entries: make(map[rune]int, len(entries))}
	for char, strokes := range entries {
		if strokes <= 0 {
			return nil, fmt.Errorf("stroke table: %q has non-positive count %d", char, strokes)
		}
		table.entries[char] = strokes
	}
	return table, nil
}

// Lookup returns the stroke count for char.
func (t *StrokeTable) Lookup(char rune) (int, bool) {
	if t == nil {
		return 0, false
	}
	strokes, ok := t.entries[char]
	return strokes, ok
}

// Len reports the number of characters in the table.
func (t *StrokeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

var defaultStrokeTable = mustBuildStrokeTable()

// DefaultStrokeTable returns the built-in stroke table.
func DefaultStrokeTable() *StrokeTable {
	return defaultStrokeTable
}

func buildStrokeEntries() (map[rune]int, error) {
	entries := make(map[rune]int)
	for _, group := range strokeGroups {
		for _, char := range group.chars {
			if existing, ok := entries[char]; ok {
				return nil, fmt.Errorf("stroke table: %q listed twice (%d and %d)", char, existing, group.strokes)
			}
			entries[char] = group.strokes
		}
	}
	for simplified, traditional := range traditionalForms {
		if _, ok := entries[simplified]; ok {
			return nil, fmt.Errorf("stroke table: simplified %q must not be listed directly", simplified)
		}
		strokes, ok := entries[traditional]
		if !ok {
			return nil, fmt.Errorf("stroke table: traditional form %q of %q is missing", traditional, simplified)
		}
		entries[simplified] = strokes
	}
	return entries, nil
}

func mustBuildStrokeTable() *StrokeTable {
	entries, err := buildStrokeEntries()
	if err != nil {
		panic(err)
	}
	table, err := NewStrokeTable(entries)
	if err != nil {
		panic(err)
	}
	return table
}
