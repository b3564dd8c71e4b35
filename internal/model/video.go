package model

type VideoSource string

const (
	VideoSourceDynamic VideoSource = "dynamic"
	VideoSourceRanking VideoSource = "ranking"
)

// FallbackBVID 动态列表为空时用于分享/观看的备用视频。
const FallbackBVID = "BV1GJ411x7h7"
