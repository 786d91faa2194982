package collector

import "WaveSentinel/internal/model"

// DefaultOTFPool is the small curated pool scanned by the daily bot.
var DefaultOTFPool = []model.Fund{
	{Code: "005827", Name: "易方达蓝筹精选"},
	{Code: "003095", Name: "中欧医疗健康A"},
	{Code: "012414", Name: "招商中证白酒C"},
	{Code: "001618", Name: "天弘中证电子C"},
	{Code: "001630", Name: "天弘中证计算机C"},
	{Code: "012620", Name: "嘉实中证软件服务C"},
	{Code: "001071", Name: "华安媒体互联网混合A"},
	{Code: "014855", Name: "嘉实中证半导体C"},
	{Code: "005669", Name: "前海开源公用事业"},
	{Code: "004854", Name: "广发中证全指汽车C"},
	{Code: "010956", Name: "天弘中证智能汽车C"},
	{Code: "002190", Name: "农银新能源主题"},
	{Code: "011630", Name: "东财有色增强A"},
	{Code: "002207", Name: "前海开源金银珠宝C"},
	{Code: "000248", Name: "汇添富中证主要消费"},
	{Code: "001594", Name: "天弘中证银行C"},
	{Code: "001595", Name: "天弘中证证券C"},
	{Code: "007872", Name: "金信稳健策略"},
	{Code: "019924", Name: "华泰柏瑞中证2000增强C"},
	{Code: "000961", Name: "天弘沪深300ETF联接A"},
}

// DefaultUnbiasedPool spans broad indices, styles, sectors and overseas
// markets. Backtests on it avoid the survivorship bias of today's top list.
var DefaultUnbiasedPool = []model.Fund{
	{Code: "000300", Name: "沪深300联接A"},
	{Code: "000905", Name: "中证500联接A"},
	{Code: "011860", Name: "中证1000联接A"},
	{Code: "019924", Name: "中证2000指数增强C"},
	{Code: "002987", Name: "广发创业板联接A"},
	{Code: "012618", Name: "易方达科创50联接A"},
	{Code: "014350", Name: "华夏北证50成份联接A"},
	{Code: "009051", Name: "嘉实中证红利低波动C"},
	{Code: "016814", Name: "央企红利ETF联接A"},
	{Code: "501029", Name: "华宝红利基金LOF"},
	{Code: "012885", Name: "华夏人工智能AI"},
	{Code: "001630", Name: "天弘中证计算机C"},
	{Code: "001158", Name: "金信智能中国2025"},
	{Code: "004877", Name: "汇添富全球移动互联"},
	{Code: "012419", Name: "华夏中证动漫游戏联接C"},
	{Code: "001618", Name: "天弘中证电子C"},
	{Code: "002190", Name: "农银新能源主题"},
	{Code: "013195", Name: "创金合信新能源汽车C"},
	{Code: "005669", Name: "前海开源公用事业"},
	{Code: "012831", Name: "华夏中证光伏产业联接A"},
	{Code: "012414", Name: "招商中证白酒指数C"},
	{Code: "000248", Name: "汇添富中证主要消费"},
	{Code: "004854", Name: "广发中证全指汽车C"},
	{Code: "018301", Name: "华夏消费电子ETF联接C"},
	{Code: "003095", Name: "中欧医疗健康A"},
	{Code: "006228", Name: "中欧医疗创新A"},
	{Code: "004666", Name: "长城中证医药卫生"},
	{Code: "161724", Name: "招商中证煤炭LOF"},
	{Code: "011630", Name: "东财有色增强A"},
	{Code: "000217", Name: "华安黄金易ETF联接C"},
	{Code: "160216", Name: "国泰中证油气LOF"},
	{Code: "165520", Name: "信诚中证基建工程LOF"},
	{Code: "001595", Name: "天弘中证证券C"},
	{Code: "001594", Name: "天弘中证银行C"},
	{Code: "000834", Name: "大成纳斯达克100A"},
	{Code: "006321", Name: "中金优选300(标普500)"},
	{Code: "006127", Name: "华安日经225ETF联接"},
	{Code: "000614", Name: "华安德国30(QDII)"},
	{Code: "013013", Name: "华夏恒生科技ETF联接A"},
}

// FallbackPool is served when the market ranking cannot be fetched.
var FallbackPool = []model.Fund{
	{Code: "012414", Name: "招商中证白酒指数C"},
}

// Sector is a representative fund for one industry theme.
type Sector struct {
	Code  string
	Label string
}

// SectorPool drives the sector rotation ranking.
var SectorPool = []Sector{
	{Code: "012885", Label: "科技/AI"},
	{Code: "001595", Label: "券商/金融"},
	{Code: "003095", Label: "医药/健康"},
	{Code: "012414", Label: "消费/白酒"},
	{Code: "002190", Label: "新能源"},
	{Code: "009051", Label: "红利/防御"},
	{Code: "011630", Label: "资源/有色"},
}

// SectorFunds returns SectorPool as funds named by their labels.
func SectorFunds() []model.Fund {
	out := make([]model.Fund, len(SectorPool))
	for i, s := range SectorPool {
		out[i] = model.Fund{Code: s.Code, Name: s.Label}
	}
	return out
}
